package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/teranos/protoreg/errors"
	"github.com/teranos/protoreg/pipeline"
)

// PrintError renders a command failure with its hints. Multi-line generator
// stderr is printed verbatim below the message, which carries only one-liners.
func PrintError(w io.Writer, err error) {
	pterm.Error.WithWriter(w).Println(err.Error())

	var failed *errors.GenerationFailedError
	if errors.As(err, &failed) && failed.MultiLine() {
		fmt.Fprintln(w, "--- generator stderr ---")
		fmt.Fprint(w, failed.Stderr)
		if !strings.HasSuffix(failed.Stderr, "\n") {
			fmt.Fprintln(w)
		}
	}

	for _, hint := range errors.GetAllHints(err) {
		pterm.Info.WithWriter(w).Println(hint)
	}
}

// printReport renders one row per stage.
func printReport(w io.Writer, report *pipeline.Report) error {
	data := pterm.TableData{{"Stage", "State", "Output", "Time"}}
	for _, st := range report.Stages {
		elapsed := "-"
		if st.Duration > 0 {
			elapsed = st.Duration.Round(time.Millisecond).String()
		}
		data = append(data, []string{st.Name, stateLabel(st.State), st.Output, elapsed})
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(data).Render()
}

func stateLabel(s pipeline.State) string {
	switch s {
	case pipeline.Completed:
		return pterm.Green(s.String())
	case pipeline.UpToDate:
		return pterm.Cyan(s.String())
	case pipeline.Failed:
		return pterm.Red(s.String())
	case pipeline.Skipped:
		return pterm.Yellow(s.String())
	default:
		return s.String()
	}
}
