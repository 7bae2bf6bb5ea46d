// Package keywords registers the built-in rule keywords with the detect
// registry. Importing the package for side effects is enough; every
// keyword wires itself up in an init function.
package keywords

import (
	"strconv"

	"github.com/afonot/suricata/internal/detect"
)

func parseUint32(kw, v string) (uint32, error) {
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, &detect.ParseError{Reason: "invalid " + kw + " value '" + v + "'"}
	}
	return uint32(n), nil
}

func parseErrf(reason string) error {
	return &detect.ParseError{Reason: reason}
}
