package types

import (
	"fmt"
	"strings"
)

// Shapes shared between the IndexCards API and its clients. Timestamps are
// RFC 3339 strings as they appear on the wire.

// Card is a single collectible card owned by a user.
type Card struct {
	ID              string `json:"id"`
	UserID          string `json:"userId"`
	PlayerFirstName string `json:"playerFirstName"`
	PlayerLastName  string `json:"playerLastName"`
	Brand           string `json:"brand"`
	Series          string `json:"series"`
	CardType        string `json:"cardType"`
	Rarity          int    `json:"rarity"`
	CreatedAt       string `json:"createdAt"`
	UpdatedAt       string `json:"updatedAt"`
}

// User is an account profile. Optional fields are null on the wire when unset.
type User struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Birthdate *string `json:"birthdate"`
	Bio       *string `json:"bio"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt string  `json:"updatedAt"`
}

// Collection groups cards. System collections are created for every user and
// cannot be renamed or deleted.
type Collection struct {
	ID                 string `json:"id"`
	UserID             string `json:"userId"`
	Name               string `json:"name"`
	IsSystemCollection bool   `json:"isSystemCollection"`
	CreatedAt          string `json:"createdAt"`
	UpdatedAt          string `json:"updatedAt"`
}

type PaginationMetadata struct {
	CurrentPage int `json:"currentPage"`
	PageSize    int `json:"pageSize"`
	TotalItems  int `json:"totalItems"`
	TotalPages  int `json:"totalPages"`
}

// NewPaginationMetadata computes the page count for totalItems.
func NewPaginationMetadata(page, pageSize, totalItems int) PaginationMetadata {
	pages := 0
	if pageSize > 0 {
		pages = (totalItems + pageSize - 1) / pageSize
	}
	return PaginationMetadata{CurrentPage: page, PageSize: pageSize, TotalItems: totalItems, TotalPages: pages}
}

type PaginatedResponse[T any] struct {
	Data       []T                `json:"data"`
	Pagination PaginationMetadata `json:"pagination"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"requestId"`
}

type AuthResponse struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

// Card list sort fields.
const (
	SortPlayerFirstName = "playerFirstName"
	SortPlayerLastName  = "playerLastName"
	SortBrand           = "brand"
	SortSeries          = "series"
	SortCardType        = "cardType"
	SortRarity          = "rarity"
	SortCreatedAt       = "createdAt"
)

const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var cardSortFields = []string{
	SortPlayerFirstName, SortPlayerLastName, SortBrand, SortSeries,
	SortCardType, SortRarity, SortCreatedAt,
}

// CardQueryParams are the optional query parameters of the card list route.
// Nil means not supplied.
type CardQueryParams struct {
	Page                  *int    `json:"page,omitempty"`
	PageSize              *int    `json:"pageSize,omitempty"`
	SortBy                *string `json:"sortBy,omitempty"`
	SortOrder             *string `json:"sortOrder,omitempty"`
	FilterPlayerFirstName *string `json:"filterPlayerFirstName,omitempty"`
	FilterPlayerLastName  *string `json:"filterPlayerLastName,omitempty"`
	FilterBrand           *string `json:"filterBrand,omitempty"`
	FilterSeries          *string `json:"filterSeries,omitempty"`
	FilterCardType        *string `json:"filterCardType,omitempty"`
	FilterRarity          *int    `json:"filterRarity,omitempty"`
}

// Validate checks supplied parameters. It returns the first problem found.
func (q CardQueryParams) Validate() error {
	if q.Page != nil && *q.Page < 1 {
		return fmt.Errorf("page must be at least 1, got %d", *q.Page)
	}
	if q.PageSize != nil && (*q.PageSize < 1 || *q.PageSize > MaxPageSize) {
		return fmt.Errorf("pageSize must be between 1 and %d, got %d", MaxPageSize, *q.PageSize)
	}
	if q.SortBy != nil && !contains(cardSortFields, *q.SortBy) {
		return fmt.Errorf("sortBy must be one of %s, got %q", strings.Join(cardSortFields, ", "), *q.SortBy)
	}
	if q.SortOrder != nil && *q.SortOrder != SortAsc && *q.SortOrder != SortDesc {
		return fmt.Errorf("sortOrder must be %s or %s, got %q", SortAsc, SortDesc, *q.SortOrder)
	}
	if q.FilterRarity != nil && *q.FilterRarity < 0 {
		return fmt.Errorf("filterRarity must not be negative, got %d", *q.FilterRarity)
	}
	return nil
}

// PageOrDefault returns the requested page and page size, falling back to
// page 1 and DefaultPageSize.
func (q CardQueryParams) PageOrDefault() (page, pageSize int) {
	page, pageSize = 1, DefaultPageSize
	if q.Page != nil {
		page = *q.Page
	}
	if q.PageSize != nil {
		pageSize = *q.PageSize
	}
	return page, pageSize
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// API routes. Path parameters are written {name}.
const (
	RouteAuthRegister  = "/auth/register"
	RouteAuthLogin     = "/auth/login"
	RouteAuthFederated = "/auth/federated"
	RouteAuthMe        = "/auth/me"

	RouteCards = "/cards"
	RouteCard  = "/cards/{id}"

	RouteCollections     = "/collections"
	RouteCollection      = "/collections/{id}"
	RouteCollectionCards = "/collections/{id}/cards"
	RouteCollectionCard  = "/collections/{id}/cards/{cardId}"

	RouteProfile = "/profile"
)

// ExpandRoute substitutes {name} placeholders in route.
func ExpandRoute(route string, params map[string]string) (string, error) {
	out := route
	for k, v := range params {
		if v == "" {
			return "", fmt.Errorf("route %s: empty value for %s", route, k)
		}
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	if i := strings.IndexByte(out, '{'); i >= 0 {
		return "", fmt.Errorf("route %s: unfilled parameter in %s", route, out[i:])
	}
	return out, nil
}
