// Package display renders ralph's user-facing terminal output: the run
// banner, task tables, statistics, history reports, and warnings. It also
// owns the operator prompt that decides what happens to a failed task under
// the pause policy.
//
// Everything writes to an io.Writer. Color is decided once per Printer from
// the writer (TTY and NO_COLOR) and can be forced with SetColor.
//
//	p := display.NewPrinter(os.Stdout)
//	p.Banner(version)
//	p.SummaryTable(store.Tasks(), store.Results())
//	p.Statistics(store.Statistics(), models.TotalDuration(store.Results()))
package display
