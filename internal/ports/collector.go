package ports

import "github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/domain"

// Collector is an ingestion source. Start launches the collector's own goroutines and
// returns once the transport is being watched; Stop asks it to finish and waits until the
// transport handle is released. A collector never closes out.
type Collector interface {
	Name() string
	Start(out chan<- *domain.Reading) error
	Stop() error
}
