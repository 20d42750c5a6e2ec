// Package ingest loads instruction files at startup. Each line is
// validated before submission so a malformed line never reaches the
// Sequencer stage half-parsed.
package ingest

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"vela/service"
)

// LoadFile submits every valid instruction line of path to the engine.
// Blank lines and '#' comments are skipped. It returns the count of
// submitted lines and the first read error, if any; invalid lines are
// reported but do not abort the load.
func LoadFile(path string, engine *service.Engine) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	submitted := 0
	lineNo := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, err := service.ParseInstruction(line); err != nil {
			fmt.Fprintf(os.Stderr, "%s:%d: %v\n", path, lineNo, err)
			continue
		}
		engine.Submit(line)
		submitted++
	}
	return submitted, sc.Err()
}
