package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type watchlistFile struct {
	Watchlist []struct {
		Symbol string `yaml:"symbol"`
	} `yaml:"watchlist"`
}

// LoadWatchlist reads symbols from a YAML file of the form
//
//	watchlist:
//	  - symbol: btcusdt
//	  - symbol: ethusdt
func LoadWatchlist(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var wf watchlistFile
	if err := yaml.Unmarshal(b, &wf); err != nil {
		return nil, err
	}

	raw := make([]string, 0, len(wf.Watchlist))
	for _, it := range wf.Watchlist {
		raw = append(raw, it.Symbol)
	}
	out := normalizeSymbols(raw)
	if len(out) == 0 {
		return nil, fmt.Errorf("no symbols found in watchlist")
	}
	return out, nil
}
