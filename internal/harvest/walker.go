package harvest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/skillsync/harvester/internal/metrics"
	"github.com/skillsync/harvester/internal/schema"
)

// walker states. The walker is a small state machine: it searches once,
// pages until the count is exhausted or the next control disappears, then
// returns everything it accumulated.
type walkState int

const (
	stateSearching walkState = iota
	statePaging
	stateDone
)

// WalkerConfig carries the fixed inputs of one harvest run.
type WalkerConfig struct {
	URL         string
	SearchTerm  string
	Selectors   Selectors
	SettleDelay time.Duration
}

// Walker drives the source through successive result pages, extracting every
// row. One browsing operation is in flight at a time; there is no
// concurrency inside a run.
type Walker struct {
	cfg       WalkerConfig
	session   Session
	extractor *Extractor
	logger    *zap.Logger
}

// NewWalker wires a walker to its session and extractor.
func NewWalker(cfg WalkerConfig, session Session, extractor *Extractor, logger *zap.Logger) *Walker {
	return &Walker{
		cfg:       cfg,
		session:   session,
		extractor: extractor,
		logger:    logger,
	}
}

// Run executes the full walk and returns the accumulated candidate records.
// Any browsing failure aborts the run with ErrExtraction; records gathered
// before the failure are discarded.
func (w *Walker) Run(ctx context.Context) ([]schema.Record, error) {
	var (
		records   []schema.Record
		remaining int
		page      int
	)

	state := stateSearching
	for state != stateDone {
		switch state {
		case stateSearching:
			total, err := w.search(ctx)
			if err != nil {
				return nil, err
			}
			w.logger.Info("Search submitted",
				zap.String("term", w.cfg.SearchTerm),
				zap.Int("total_pages", total))
			remaining = total
			state = statePaging

		case statePaging:
			page++
			extracted, err := w.harvestPage(ctx, page)
			if err != nil {
				return nil, err
			}
			records = append(records, extracted...)
			remaining--
			if remaining <= 0 {
				state = stateDone
				break
			}

			hasNext, err := w.session.HasElement(ctx, w.cfg.Selectors.NextPage)
			if err != nil {
				return nil, fmt.Errorf("%w: probe next-page control: %v", ErrExtraction, err)
			}
			if !hasNext {
				w.logger.Debug("Next-page control gone, stopping early",
					zap.Int("page", page), zap.Int("pages_left", remaining))
				state = stateDone
				break
			}
			if err := w.session.Click(ctx, w.cfg.Selectors.NextPage); err != nil {
				return nil, fmt.Errorf("%w: advance to next page: %v", ErrExtraction, err)
			}
			if err := w.session.WaitFor(ctx, w.cfg.SettleDelay); err != nil {
				return nil, fmt.Errorf("%w: settle after page advance: %v", ErrExtraction, err)
			}
		}
	}

	w.logger.Info("Walk finished",
		zap.Int("pages", page),
		zap.Int("records", len(records)))
	return records, nil
}

// search performs the initial navigation and search submission and returns
// the number of result pages (1 when the indicator is absent).
func (w *Walker) search(ctx context.Context) (int, error) {
	if err := w.session.Navigate(ctx, w.cfg.URL); err != nil {
		return 0, fmt.Errorf("%w: navigate %s: %v", ErrExtraction, w.cfg.URL, err)
	}
	if err := w.session.Fill(ctx, w.cfg.Selectors.SearchInput, w.cfg.SearchTerm); err != nil {
		return 0, fmt.Errorf("%w: fill search input: %v", ErrExtraction, err)
	}
	if err := w.session.Click(ctx, w.cfg.Selectors.SearchButton); err != nil {
		return 0, fmt.Errorf("%w: trigger search: %v", ErrExtraction, err)
	}
	if err := w.session.WaitForSelector(ctx, w.cfg.Selectors.ResultsWrapper); err != nil {
		return 0, fmt.Errorf("%w: wait for results: %v", ErrExtraction, err)
	}
	return w.totalPages(ctx)
}

// totalPages reads the page-count indicator. A missing or unparseable
// indicator means a single page of results.
func (w *Walker) totalPages(ctx context.Context) (int, error) {
	text, found, err := w.session.ElementText(ctx, w.cfg.Selectors.TotalPages)
	if err != nil {
		return 0, fmt.Errorf("%w: read page count: %v", ErrExtraction, err)
	}
	if !found {
		return 1, nil
	}
	total, convErr := strconv.Atoi(strings.TrimSpace(text))
	if convErr != nil || total < 1 {
		w.logger.Debug("Unparseable page count, assuming one page", zap.String("text", text))
		return 1, nil
	}
	return total, nil
}

// harvestPage extracts every row on the current page. Rejected rows are
// logged and dropped; they never abort the page.
func (w *Walker) harvestPage(ctx context.Context, page int) ([]schema.Record, error) {
	rows, err := w.session.Rows(ctx, w.cfg.Selectors.Rows)
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate rows on page %d: %v", ErrExtraction, page, err)
	}
	metrics.IncPage()

	records := make([]schema.Record, 0, len(rows))
	for i, row := range rows {
		rec, rejection := w.extractor.Extract(row)
		if rejection != nil {
			metrics.IncRow("rejected")
			w.logger.Warn("Row rejected",
				zap.Int("page", page),
				zap.Int("row", i),
				zap.String("reason", rejection.Reason))
			continue
		}
		metrics.IncRow("extracted")
		records = append(records, rec)
	}
	w.logger.Debug("Page harvested",
		zap.Int("page", page),
		zap.Int("rows", len(rows)),
		zap.Int("records", len(records)))
	return records, nil
}
