package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"isinrename/internal/classifier"
	"isinrename/internal/config"
	"isinrename/internal/metadata"
	"isinrename/internal/scanner"
)

// isinLength is the length of an ISIN.
const isinLength = 12

// StatusResult describes the dataset without changing it.
type StatusResult struct {
	Plan  *Result         // What a rename pass would do now
	Stats *DirectoryStats // Current directory statistics
	// Unclaimed lists ISIN-named PDFs whose ISIN no valid row carries.
	Unclaimed []string
}

// Status plans a pass and reports the directory as it is now.
func Status(ctx context.Context, cfg *config.Configuration) (*StatusResult, error) {
	plan, err := NewRenamer(cfg, Options{DryRun: true}).Run(ctx)
	if err != nil {
		return nil, err
	}

	files, err := scanner.ScanWithOptions(cfg.TargetDirectory, cfg.ScanOptions())
	if err != nil {
		return nil, fmt.Errorf("scan target directory: %w", err)
	}

	rows, _, err := metadata.ReadAll(cfg.MetadataFile, cfg.MetadataOptions())
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	claimed := make(map[string]bool, len(rows))
	for _, row := range rows {
		if row.Valid() {
			claimed[row.ISIN] = true
		}
	}

	result := &StatusResult{Plan: plan, Stats: &DirectoryStats{}}
	for _, f := range files {
		c := classifier.Classify(f.Name)
		result.Stats.add(c)
		if c.ISINNamed && !claimed[f.Name[:isinLength]] {
			result.Unclaimed = append(result.Unclaimed, f.Name)
		}
	}
	sort.Strings(result.Unclaimed)

	return result, nil
}
