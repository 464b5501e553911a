// Package harvest drives the extraction of opportunity records from the
// paginated source table: one row at a time, one page at a time, over a
// single browsing session.
package harvest

import (
	"context"
	"time"
)

// TableRow is one rendered result row: the ordered cell texts plus the raw
// markup of the first cell, which embeds the map-pin coordinates.
type TableRow struct {
	Cells         []string
	FirstCellHTML string
}

// Session is the browsing capability the walker consumes. Implementations
// own exactly one browser page; no call is safe for concurrent use.
type Session interface {
	// Navigate loads the given URL.
	Navigate(ctx context.Context, url string) error
	// Fill types text into the input matched by selector.
	Fill(ctx context.Context, selector, text string) error
	// Click activates the element matched by selector.
	Click(ctx context.Context, selector string) error
	// WaitForSelector blocks until selector matches an element.
	WaitForSelector(ctx context.Context, selector string) error
	// WaitFor blocks for a fixed settle delay.
	WaitFor(ctx context.Context, d time.Duration) error
	// ElementText returns the text of the first element matched by
	// selector, with found=false when nothing matches.
	ElementText(ctx context.Context, selector string) (text string, found bool, err error)
	// HasElement reports whether selector currently matches an element.
	HasElement(ctx context.Context, selector string) (bool, error)
	// Rows snapshots all rows matched by selector.
	Rows(ctx context.Context, selector string) ([]TableRow, error)
}

// Selectors addresses the fixed controls of the source page.
type Selectors struct {
	ResultsWrapper string `mapstructure:"results_wrapper"`
	Rows           string `mapstructure:"rows"`
	SearchInput    string `mapstructure:"search_input"`
	SearchButton   string `mapstructure:"search_button"`
	NextPage       string `mapstructure:"next_page"`
	TotalPages     string `mapstructure:"total_pages"`
}

// DefaultSelectors match the SkillBridge locations table as rendered today.
func DefaultSelectors() Selectors {
	return Selectors{
		ResultsWrapper: "#location-table_wrapper",
		Rows:           `#location-table > tbody > tr[role="row"]`,
		SearchInput:    "#keywords",
		SearchButton:   "#loc-search-btn",
		NextPage:       "#location-table_next",
		TotalPages:     "#location-table_paginate > span > a:nth-child(5)",
	}
}
