package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/perfume-storefront/internal/application"
	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	"github.com/oksasatya/perfume-storefront/internal/interface/middleware"
	"github.com/oksasatya/perfume-storefront/pkg/apperror"
	"github.com/oksasatya/perfume-storefront/pkg/validation"
)

// bindJSON binds the body into dst. On failure it records a validation error
// for the error handler and returns false.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(apperror.Validation(validation.ToDetails(err)))
		return false
	}
	return true
}

// fail hands err to the error handler.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
}

func userID(c *gin.Context) string   { return c.GetString(middleware.CtxUserID) }
func userRole(c *gin.Context) string { return c.GetString(middleware.CtxUserRole) }

func isAdmin(c *gin.Context) bool { return userRole(c) == entity.RoleAdmin }

func clientIP(c *gin.Context) string {
	if ip := c.GetString("real_ip"); ip != "" {
		return ip
	}
	return c.ClientIP()
}

func requestMeta(c *gin.Context) application.RequestMeta {
	return application.RequestMeta{IP: clientIP(c), UserAgent: c.GetHeader("User-Agent")}
}

func queryInt(c *gin.Context, key string, def int) int {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func queryFloat(c *gin.Context, key string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(c.Query(key)), 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}

func queryBool(c *gin.Context, key string) bool {
	b, _ := strconv.ParseBool(c.Query(key))
	return b
}

// queryList accepts both ?tags=a,b and ?tags=a&tags=b.
func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, v := range c.QueryArray(key) {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func queryTime(c *gin.Context, key string) (*time.Time, error) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, apperror.Validation(map[string]string{key: "must be RFC3339 or YYYY-MM-DD"})
	}
	return &t, nil
}

// listQuery reads page, limit, sort, order and search. Normalisation against
// the per-resource sort whitelist happens in the repositories.
func listQuery(c *gin.Context) entity.ListQuery {
	return entity.ListQuery{
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", entity.DefaultPageSize),
		Sort:   c.Query("sort"),
		Order:  strings.ToLower(c.Query("order")),
		Search: strings.TrimSpace(c.Query("search")),
	}
}

func productFilter(c *gin.Context) entity.ProductFilter {
	f := entity.ProductFilter{
		ListQuery:     listQuery(c),
		Category:      c.Query("category"),
		Brand:         c.Query("brand"),
		Gender:        strings.ToLower(c.Query("gender")),
		IncludeUnisex: queryBool(c, "includeUnisex"),
		Concentration: strings.ToLower(c.Query("concentration")),
		MinPrice:      queryFloat(c, "minPrice"),
		MaxPrice:      queryFloat(c, "maxPrice"),
		InStock:       queryBool(c, "inStock"),
		Tags:          queryList(c, "tags"),
		Notes:         queryList(c, "notes"),
	}
	if v := c.Query("featured"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			f.Featured = &b
		}
	}
	// only admins may see inactive products
	f.IncludeInactive = isAdmin(c) && queryBool(c, "includeInactive")
	return f
}

// pageMeta is the meta block of list responses.
func pageMeta(q entity.ListQuery) gin.H {
	q = q.Normalize()
	return gin.H{"page": q.Page, "limit": q.Limit}
}
