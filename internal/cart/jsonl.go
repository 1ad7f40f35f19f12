package cart

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mesh-intelligence/storefront/pkg/types"
)

// WriteJSONL writes one item per line.
func WriteJSONL(w io.Writer, c types.Cart) error {
	bw := bufio.NewWriter(w)
	for _, item := range c {
		rec, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshal item %s: %w", item.ID, err)
		}
		if _, err := bw.Write(rec); err != nil {
			return fmt.Errorf("writing record: %w", err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("writing newline: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing buffer: %w", err)
	}
	return nil
}

// ReadJSONL reads items written by WriteJSONL. Blank and malformed lines are
// skipped; skipped reports how many malformed lines were dropped.
func ReadJSONL(r io.Reader) (c types.Cart, skipped int, err error) {
	c = types.Cart{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var item types.CartItem
		if err := json.Unmarshal(line, &item); err != nil {
			skipped++
			continue
		}
		c = append(c, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("scanning cart records: %w", err)
	}
	return c, skipped, nil
}
