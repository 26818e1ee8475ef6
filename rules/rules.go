//go:build ruleguard

// Package gorules holds project lint rules for golangci-lint via ruleguard.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// WaitGroupGo reports the Add/Done goroutine pattern that wg.Go replaces.
//
//	wg.Add(1)
//	go func() {
//	    defer wg.Done()
//	    work()
//	}()
//
// becomes
//
//	wg.Go(work)
func WaitGroupGo(m dsl.Matcher) {
	m.Match(`$wg.Add(1); go func() { defer $wg.Done(); $*body }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report("use $wg.Go(func() { $body }) instead of Add/Done").
		Suggest("$wg.Go(func() { $body })")

	m.Match(`go func() { defer $wg.Done(); $*_ }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup")).
		Report("use $wg.Go(func() { ... }) instead of go func() { defer $wg.Done(); ... }()")
}

// EnhancedErrors keeps error construction on internal/errors so every error
// carries a component and category for telemetry and API status mapping.
func EnhancedErrors(m dsl.Matcher) {
	m.Match(`fmt.Errorf($*_)`).
		Where(m.File().PkgPath.Matches(`/internal/(engine|batch|jobs|retrieval|generative|embedding|corpus|service)$`) &&
			!m.File().Name.Matches(`_test\.go$`)).
		Report("use errors.Newf(...).Component(...).Category(...).Build() instead of fmt.Errorf")

	m.Match(`errors.New($x).Build()`).
		Where(m.File().PkgPath.Matches(`/internal/`) && !m.File().Name.Matches(`_test\.go$`)).
		Report("set a Component and Category on $x before Build")
}

// DecimalEmissions flags float conversions of decimal totals outside tests and
// presentation code; emission sums must stay exact.
func DecimalEmissions(m dsl.Matcher) {
	m.Match(`$d.InexactFloat64()`, `$d.Float64()`).
		Where(m["d"].Type.Is("decimal.Decimal") &&
			!m.File().Name.Matches(`_test\.go$`) &&
			!m.File().PkgPath.Matches(`/internal/observability`)).
		Report("keep $d as decimal.Decimal; convert to float only for display or metrics")
}

// StructuredLogging reports the standard log package in place of internal/logger.
func StructuredLogging(m dsl.Matcher) {
	m.Import("log")
	m.Match(`log.Printf($*_)`, `log.Println($*_)`, `log.Print($*_)`, `log.Fatalf($*_)`, `log.Fatal($*_)`).
		Where(!m.File().Name.Matches(`_test\.go$`)).
		Report("use the module logger from internal/logger instead of the log package")
}
