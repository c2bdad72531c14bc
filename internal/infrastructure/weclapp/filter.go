package weclapp

import (
	"fmt"
	"net/url"
)

// Filter is one condition on an entity listing. Op is a weclapp operator
// such as eq, ge, le or in; only in uses more than one value.
type Filter struct {
	Field  string
	Op     string
	Values []string
}

// EncodeFilters renders filters as query parameters:
//
//	filter[docDate][ge]=2025-01-06
//	filter[distributionChannelName][in][0]=Shop DE netto
//
// An empty Op means eq. Filters without values are skipped.
func EncodeFilters(filters []Filter) url.Values {
	params := url.Values{}
	for _, f := range filters {
		if f.Field == "" || len(f.Values) == 0 {
			continue
		}
		op := f.Op
		if op == "" {
			op = "eq"
		}
		if op == "in" {
			for i, v := range f.Values {
				params.Set(fmt.Sprintf("filter[%s][in][%d]", f.Field, i), v)
			}
			continue
		}
		params.Set(fmt.Sprintf("filter[%s][%s]", f.Field, op), f.Values[0])
	}
	return params
}
