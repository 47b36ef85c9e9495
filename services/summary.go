package services

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"discount-harvester/models"
	"discount-harvester/storage"
)

// BrandLine is one brand row of the run summary.
type BrandLine struct {
	Brand    string
	Records  int
	Attempts int
	Failures int
	Failed   bool
}

// Summary is the condensed view of a RunReport printed after a run.
type Summary struct {
	Date           string
	TotalRecords   int
	Brands         []BrandLine
	ListingRows    int
	ListingErrors  int
	ListingFailed  []string
	Discounted     int
	Discrepancies  int
	IssuesByKind   map[string]int
	Backfilled     int
	BackfillFailed bool
}

type SummaryService struct {
	out io.Writer
}

func NewSummaryService(out io.Writer) *SummaryService {
	if out == nil {
		out = os.Stdout
	}
	return &SummaryService{out: out}
}

func (s *SummaryService) Generate(r *RunReport) *Summary {
	sum := &Summary{
		Date:         storage.DateStamp(r.Day),
		IssuesByKind: make(map[string]int),
	}

	for _, b := range r.Brands {
		sum.Brands = append(sum.Brands, BrandLine{
			Brand:    b.Brand,
			Records:  len(b.Records),
			Attempts: b.Attempts,
			Failures: len(b.Failures),
			Failed:   b.Err != nil,
		})
		sum.TotalRecords += len(b.Records)
	}

	if r.Listing != nil {
		sum.ListingRows = len(r.Listing.Records)
		sum.ListingErrors = r.Listing.RowErrors
		sum.ListingFailed = r.Listing.Failed
	}

	if rec := r.Reconciliation; rec != nil {
		sum.Discounted = rec.Discounted
		sum.Discrepancies = len(rec.Discrepancies)
		for _, d := range rec.Discrepancies {
			for _, kind := range issueKinds(d.Issue) {
				sum.IssuesByKind[kind]++
			}
		}
		if rec.BackfillErr != nil {
			sum.BackfillFailed = true
		} else {
			sum.Backfilled = len(rec.Backfill)
		}
	}
	return sum
}

// issueKinds maps "MSRP mismatch: ...; Discount mismatch: ..." to its
// issue names.
func issueKinds(issue string) []string {
	var kinds []string
	for _, part := range strings.Split(issue, "; ") {
		if part == models.IssueModelNotFound {
			kinds = append(kinds, part)
			continue
		}
		if i := strings.Index(part, ":"); i > 0 {
			kinds = append(kinds, part[:i])
		}
	}
	return kinds
}

func (s *SummaryService) Print(sum *Summary) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)
	w := s.out

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  🚗 DISCOUNT HARVEST %s\033[0m\n", sum.Date)
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Configurator\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(sum.Brands) == 0 {
		fmt.Fprintf(w, "  No brands harvested\n")
	}
	for _, b := range sum.Brands {
		status := "\033[1;32mok\033[0m"
		if b.Failed {
			status = "\033[1;31mfailed\033[0m"
		}
		fmt.Fprintf(w, "  %-16s %4d rows  %d attempt(s)  %d model error(s)  %s\n",
			b.Brand, b.Records, b.Attempts, b.Failures, status)
	}
	fmt.Fprintf(w, "  Total new rows : \033[1m%d\033[0m\n\n", sum.TotalRecords)

	fmt.Fprintf(w, "\033[1;33m  Listing page\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Rows           : \033[1m%d\033[0m\n", sum.ListingRows)
	fmt.Fprintf(w, "  Row errors     : %d\n", sum.ListingErrors)
	if len(sum.ListingFailed) > 0 {
		fmt.Fprintf(w, "  Failed brands  : \033[1;31m%s\033[0m\n", strings.Join(sum.ListingFailed, ", "))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Reconciliation\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Discounted listings : %d\n", sum.Discounted)
	fmt.Fprintf(w, "  Discrepancies       : \033[1m%d\033[0m\n", sum.Discrepancies)

	kinds := make([]string, 0, len(sum.IssuesByKind))
	for k := range sum.IssuesByKind {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		return sum.IssuesByKind[kinds[i]] > sum.IssuesByKind[kinds[j]]
	})
	for _, k := range kinds {
		bar := strings.Repeat("█", min(sum.IssuesByKind[k], 30))
		fmt.Fprintf(w, "    %-28s %s (%d)\n", k, bar, sum.IssuesByKind[k])
	}

	if sum.BackfillFailed {
		fmt.Fprintf(w, "  Backfill            : \033[1;31mfailed\033[0m\n")
	} else {
		fmt.Fprintf(w, "  Backfilled rows     : %d\n", sum.Backfilled)
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}
