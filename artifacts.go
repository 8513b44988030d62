// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package intentminer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// StoreStatsCSV writes one row per clustering step: cluster count,
// overall cost, and elapsed wall-clock time since the run started.
func (hc *HierarchicalClustering) StoreStatsCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"k", "overall_cost", "elapsed_seconds"}); err != nil {
		return fmt.Errorf("intentminer: writing stats header: %w", err)
	}
	for _, s := range hc.Stats {
		row := []string{
			strconv.Itoa(s.K),
			strconv.FormatFloat(s.OverallCost, 'f', -1, 64),
			strconv.FormatFloat(s.Elapsed.Seconds(), 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("intentminer: writing stats row: %w", err)
		}
	}
	return cw.Error()
}

// StoreClusterHierarchyXML writes the merge tree as nested <cluster>
// elements: every original flow and merged cluster is a node, attributed
// by its index and the parent it was folded into.
func (hc *HierarchicalClustering) StoreClusterHierarchyXML(w io.Writer) error {
	if _, err := fmt.Fprintln(w, `<?xml version="1.0" encoding="UTF-8"?>`); err != nil {
		return fmt.Errorf("intentminer: writing xml header: %w", err)
	}
	if _, err := fmt.Fprintln(w, "<clusters>"); err != nil {
		return err
	}
	for id := range hc.Clusters {
		spec := hc.Clusters[id]
		if _, err := fmt.Fprintf(w, "  <cluster id=%q parent=%q cost=%q>%s</cluster>\n",
			strconv.Itoa(id), strconv.Itoa(hc.Parents[id]), strconv.FormatFloat(spec.Cost, 'f', -1, 64), xmlEscape(fmt.Sprint(spec.Value))); err != nil {
			return fmt.Errorf("intentminer: writing cluster %d: %w", id, err)
		}
	}
	_, err := fmt.Fprintln(w, "</clusters>")
	return err
}

func xmlEscape(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '&':
			out = append(out, "&amp;"...)
		case '<':
			out = append(out, "&lt;"...)
		case '>':
			out = append(out, "&gt;"...)
		default:
			out = append(out, c)
		}
	}
	return string(out)
}
