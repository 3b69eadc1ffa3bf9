package handler

import (
	"math"
	"net/http"
	"strconv"

	"github.com/sakif/snippetshare/internal/apperror"
	"github.com/sakif/snippetshare/internal/service"
)

// PageResponse is the envelope for every paginated listing:
//
//	{"count": 42, "next": "http://host/snippets?page=3", "previous": "http://host/snippets?page=1", "results": [...]}
//
// next and previous are null at either end.
type PageResponse[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// pageRequest reads ?page= and ?page_size=. A page that is not a positive
// number, or one too large to turn into an offset, is a 404 like a page
// past the end; a bad page_size falls back to the default.
func pageRequest(r *http.Request) (service.PageRequest, error) {
	q := r.URL.Query()
	pr := service.PageRequest{Page: 1}

	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n-1 > math.MaxInt/service.MaxPageSize {
			return pr, &apperror.AppError{Err: apperror.ErrNotFound, Message: "Invalid page."}
		}
		pr.Page = n
	}
	if raw := q.Get("page_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			pr.PageSize = n
		}
	}
	return pr, nil
}

// newPageResponse builds the envelope, converting each item with conv.
func newPageResponse[S, T any](r *http.Request, page *service.Page[S], conv func(S) T) PageResponse[T] {
	results := make([]T, 0, len(page.Items))
	for _, item := range page.Items {
		results = append(results, conv(item))
	}

	resp := PageResponse[T]{Count: page.Total, Results: results}
	if page.HasNext() {
		next := pageLink(r, page.Page+1)
		resp.Next = &next
	}
	if page.HasPrevious() {
		prev := pageLink(r, page.Page-1)
		resp.Previous = &prev
	}
	return resp
}

// pageLink is the current URL with page replaced. Page 1 drops the
// parameter entirely so the first page has one canonical URL.
func pageLink(r *http.Request, page int) string {
	q := r.URL.Query()
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}

	link := absoluteURL(r, r.URL.Path)
	if encoded := q.Encode(); encoded != "" {
		link += "?" + encoded
	}
	return link
}
