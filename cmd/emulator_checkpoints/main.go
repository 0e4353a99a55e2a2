// emulator_checkpoints inspects saved Taylor emulator checkpoints.
//
// Usage:
//
//	emulator_checkpoints [-summary] [-center] [-terms] [-list] <checkpoint_dir>
//
// With no report flags it prints the summary.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	"github.com/gomlx/emulator/checkpoints"
	"github.com/gomlx/emulator/emulators/taylor"
)

var (
	flagSummary = flag.Bool("summary", false, "Display a summary of the latest checkpoint: engine, parameters, order, term and output counts, sizes.")
	flagCenter  = flag.Bool("center", false, "Lists the expansion center, one row per varied parameter.")
	flagTerms   = flag.Bool("terms", false, "Lists the fitted polynomial terms: per-parameter powers and the coefficient per output dimension.")
	flagList    = flag.Bool("list", false, "Lists all checkpoints in the directory, oldest first.")
	flagName    = flag.String("name", "", "Base name of the checkpoint to inspect. Defaults to the latest.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		klog.Errorf("Missing checkpoint directory to read from. See 'emulator_checkpoints -help'.")
		os.Exit(1)
	}
	if len(args) > 1 {
		klog.Errorf("Too many arguments. See 'emulator_checkpoints -help'.")
		os.Exit(1)
	}
	dir := args[0]

	if !*flagSummary && !*flagCenter && !*flagTerms && !*flagList {
		*flagSummary = true
	}
	if *flagList {
		listCheckpoints(dir)
	}
	if *flagSummary || *flagCenter || *flagTerms {
		report(dir)
	}
}

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)

	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

func newPlainTable(withHeader bool) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if withHeader && row == 1 {
				return headerRowStyle
			}
			if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			if col == 0 {
				s = s.Align(lipgloss.Right)
			} else {
				s = s.Align(lipgloss.Left)
			}
			return
		})
}

func listCheckpoints(dir string) {
	names := must.M1(checkpoints.ListDir(dir))
	fmt.Println(titleStyle.Render(fmt.Sprintf("Checkpoints in %q", dir)))
	table := newPlainTable(true)
	table.Row("Name", "Header", "Coefficients")
	for _, name := range names {
		table.Row(name, fileSize(dir, name+".json"), fileSize(dir, name+".bin"))
	}
	fmt.Println(table.Render())
}

func fileSize(dir, fileName string) string {
	fi, err := os.Stat(filepath.Join(dir, fileName))
	if err != nil {
		return "?"
	}
	return humanize.Bytes(uint64(fi.Size()))
}

func report(dir string) {
	engine, header, err := loadFor(dir)
	must.M(err)
	state := engine.State()

	if *flagSummary {
		fmt.Println(titleStyle.Render("Summary"))
		table := newPlainTable(false)
		table.Row("engine", header.Engine)
		table.Row("checkpoint id", header.ID)
		table.Row("created", fmt.Sprintf("%s (%s)", header.CreatedAt.Format("2006-01-02 15:04:05"), humanize.Time(header.CreatedAt)))
		table.Row("parameters", strings.Join(header.Params, ", "))
		table.Row("order", strconv.Itoa(header.Order))
		table.Row("# terms", humanize.Comma(int64(state.NumTerms())))
		table.Row("# outputs", humanize.Comma(int64(state.NumOutputs)))
		table.Row("coefficients", humanize.Bytes(uint64(8*len(state.Derivatives))))
		fmt.Println(table.Render())
	}

	if *flagCenter {
		fmt.Println(titleStyle.Render("Expansion center"))
		table := newPlainTable(true)
		table.Row("Parameter", "Center")
		for i, name := range header.Params {
			table.Row(name, strconv.FormatFloat(state.Center[i], 'g', -1, 64))
		}
		fmt.Println(table.Render())
	}

	if *flagTerms {
		fmt.Println(titleStyle.Render("Polynomial terms"))
		table := newPlainTable(true)
		headers := append([]string{"#", "Term"}, outputHeaders(state.NumOutputs)...)
		table.Row(headers...)
		for j, mi := range state.Powers {
			row := []string{strconv.Itoa(j), mi.Format(header.Params)}
			for k := 0; k < state.NumOutputs; k++ {
				row = append(row, strconv.FormatFloat(state.Derivatives[j*state.NumOutputs+k], 'g', 6, 64))
			}
			table.Row(row...)
		}
		fmt.Println(table.Render())
	}
}

func loadFor(dir string) (*taylor.Engine, *checkpoints.Header, error) {
	if *flagName != "" {
		return checkpoints.LoadName(dir, *flagName)
	}
	return checkpoints.Load(dir)
}

func outputHeaders(numOutputs int) []string {
	if numOutputs == 1 {
		return []string{"Coefficient"}
	}
	headers := make([]string, numOutputs)
	for k := range headers {
		headers[k] = "Coefficient[" + strconv.Itoa(k) + "]"
	}
	return headers
}
