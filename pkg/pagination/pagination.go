package pagination

import (
	"github.com/gin-gonic/gin"
	"github.com/richxcame/fraud-investigator/pkg/common"
)

const (
	// DefaultLimit matches the dashboard's case list page size
	DefaultLimit = 50
	// MaxLimit is the maximum number of items per page
	MaxLimit = 500
	// DefaultOffset is the default starting position
	DefaultOffset = 0
)

// Params represents pagination parameters
type Params struct {
	Limit  int `form:"limit" json:"limit"`
	Offset int `form:"offset" json:"offset"`
}

// ParseParams extracts pagination parameters, clamping out-of-range values
func ParseParams(c *gin.Context) Params {
	params := Params{
		Limit:  DefaultLimit,
		Offset: DefaultOffset,
	}

	if err := c.ShouldBindQuery(&params); err != nil {
		return Params{Limit: DefaultLimit, Offset: DefaultOffset}
	}

	if params.Limit <= 0 {
		params.Limit = DefaultLimit
	}
	if params.Limit > MaxLimit {
		params.Limit = MaxLimit
	}
	if params.Offset < 0 {
		params.Offset = DefaultOffset
	}
	return params
}

// BuildMeta creates pagination metadata for responses
func BuildMeta(p Params, total int64) *common.Meta {
	return &common.Meta{
		Limit:  p.Limit,
		Offset: p.Offset,
		Total:  total,
	}
}
