package marketplace

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/craftshop/backend/internal/domain/integration"
)

// DefaultFetchBudget is the default record-count budget across all pages.
const DefaultFetchBudget = 100

// Cursor addresses one page in a platform's pagination scheme. Exactly one
// idiom is active per platform: offset/limit, an opaque next token, or a
// Link-header URL.
type Cursor struct {
	Offset int
	Token  string
	URL    string
}

// Page is one fetched page of records plus the cursor for the next one.
// A nil Next marks the natural end of the listing.
type Page[T any] struct {
	Items []T
	Next  *Cursor
}

// PageFunc fetches the page addressed by the cursor.
type PageFunc[T any] func(ctx context.Context, cursor Cursor) (Page[T], error)

// FetchConfig controls a paginated fetch.
type FetchConfig struct {
	// Budget is the record-count budget; zero means DefaultFetchBudget.
	Budget int
	Logger *zap.Logger
	// sleep is injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// FetchAll drives fetch through a platform's pagination until the budget is
// reached or the platform signals no further pages.
//
// A 429 mid-pagination sleeps for the signalled duration and resumes from
// the same cursor, losing and duplicating nothing. A retryable failure with
// pages already collected returns the partial set with a warning log;
// partial results are preferred over total failure. Every other failure
// propagates with a nil slice: non-retryable errors (a revoked token does
// not get quieter on the next page), failures on the first page, and a
// context cancelled during a rate-limit pause.
func FetchAll[T any](ctx context.Context, fetch PageFunc[T], cfg FetchConfig) ([]T, error) {
	budget := cfg.Budget
	if budget <= 0 {
		budget = DefaultFetchBudget
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sleep := cfg.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var collected []T
	cursor := Cursor{}
	pages := 0

	for {
		page, err := fetch(ctx, cursor)
		if err != nil {
			if rl, ok := integration.AsRateLimited(err); ok {
				logger.Info("rate limited, pausing pagination",
					zap.Duration("retry_after", rl.RetryAfter),
					zap.Int("pages_collected", pages),
				)
				if sleepErr := sleep(ctx, rl.RetryAfter); sleepErr != nil {
					return nil, sleepErr
				}
				// resume from the same cursor
				continue
			}
			if integration.IsRetryable(err) && pages > 0 {
				logger.Warn("pagination failed mid-listing, returning partial results",
					zap.Int("pages_collected", pages),
					zap.Int("records_collected", len(collected)),
					zap.Error(err),
				)
				return collected, nil
			}
			return nil, err
		}

		collected = append(collected, page.Items...)
		pages++

		if len(collected) >= budget {
			return collected[:budget], nil
		}
		if page.Next == nil || len(page.Items) == 0 {
			return collected, nil
		}
		cursor = *page.Next
	}
}

// ParseLinkNext extracts the rel="next" URL from an HTTP Link header, as
// used by Shopify's cursor pagination. It returns "" when no next link
// exists.
func ParseLinkNext(header http.Header) string {
	for _, link := range header.Values("Link") {
		for _, part := range strings.Split(link, ",") {
			section := strings.Split(part, ";")
			if len(section) < 2 {
				continue
			}
			urlPart := strings.Trim(strings.TrimSpace(section[0]), "<>")
			for _, param := range section[1:] {
				if strings.TrimSpace(param) == `rel="next"` {
					return urlPart
				}
			}
		}
	}
	return ""
}
