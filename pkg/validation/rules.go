package validation

// Query parameter structs for the stats API. gin binds them with form tags and
// ValidateStruct enforces the ranges.

// DailyVolumeRequest selects the window of the daily volume chart
type DailyVolumeRequest struct {
	Days int    `form:"days" json:"days" validate:"omitempty,gte=1,lte=90"`
	TZ   string `form:"tz" json:"tz" validate:"omitempty,max=64"`
}

// TimezoneRequest carries the IANA zone used to bucket stats. Unknown zones fall back to UTC.
type TimezoneRequest struct {
	TZ string `form:"tz" json:"tz" validate:"omitempty,max=64"`
}
