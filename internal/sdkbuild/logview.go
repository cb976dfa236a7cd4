package sdkbuild

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/ulikunitz/xz"
	"golang.org/x/term"
)

// compressXZ compresses srcPath into destPath.
func compressXZ(srcPath, destPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	xzWriter, err := xz.NewWriter(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(xzWriter, src); err != nil {
		xzWriter.Close()
		return err
	}
	if err := xzWriter.Close(); err != nil {
		return err
	}
	return dst.Close()
}

// finishLog replaces a completed build log with its .xz form. Failed builds
// keep the plain log so it can be opened directly.
func finishLog(logPath string) {
	if _, err := os.Stat(logPath); err != nil {
		return
	}
	if err := compressXZ(logPath, logPath+".xz"); err != nil {
		debugf("Warning: failed to compress %s: %v\n", logPath, err)
		return
	}
	os.Remove(logPath)
}

// buildLog is one per-target log found under build/logs.
type buildLog struct {
	Name string
	Path string
}

// listBuildLogs returns the plain and compressed logs, newest first.
func listBuildLogs(logDir string) ([]buildLog, error) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var logs []buildLog
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasSuffix(name, ".log") || strings.HasSuffix(name, ".log.xz")) {
			continue
		}
		logs = append(logs, buildLog{
			Name: strings.TrimSuffix(strings.TrimSuffix(name, ".xz"), ".log"),
			Path: filepath.Join(logDir, name),
		})
	}
	sort.Slice(logs, func(i, j int) bool {
		ai, err1 := os.Stat(logs[i].Path)
		aj, err2 := os.Stat(logs[j].Path)
		if err1 != nil || err2 != nil {
			return logs[i].Path > logs[j].Path
		}
		return ai.ModTime().After(aj.ModTime())
	})
	return logs, nil
}

// readLogLines reads a plain or xz-compressed log.
func readLogLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".xz") {
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("error creating xz reader: %w", err)
		}
		r = xr
	}
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// logSeverity classifies a compiler or tool output line.
func logSeverity(line string) string {
	l := strings.ToLower(line)
	switch {
	case strings.Contains(l, "error:"), strings.Contains(l, "** build failed **"), strings.Contains(l, "cmake error"):
		return "error"
	case strings.Contains(l, "warning:"):
		return "warning"
	}
	return ""
}

// highlightLog escapes lines for tview and colours errors and warnings. It
// also returns the row of every error line.
func highlightLog(lines []string) (string, []int) {
	var b strings.Builder
	var errorRows []int
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch logSeverity(line) {
		case "error":
			errorRows = append(errorRows, i)
			b.WriteString("[red]" + tview.Escape(line) + "[-]")
		case "warning":
			b.WriteString("[yellow]" + tview.Escape(line) + "[-]")
		default:
			b.WriteString(tview.Escape(line))
		}
	}
	return b.String(), errorRows
}

// RunPager shows a build log in a scrollable view when stdout is a terminal
// and the log does not fit on screen. Otherwise the lines are printed as is.
func RunPager(title string, lines []string) error {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		for _, line := range lines {
			fmt.Println(line)
		}
		return nil
	}
	if _, height, err := term.GetSize(fd); err == nil && len(lines) <= height-2 {
		for _, line := range lines {
			fmt.Println(line)
		}
		return nil
	}

	text, errorRows := highlightLog(lines)
	view := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false).
		SetText(text)
	view.SetBorder(true).SetTitle(fmt.Sprintf(" %s (%d lines, %d errors) ", title, len(lines), len(errorRows)))

	footer := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[gray]↑/↓ PgUp/PgDn scroll, g/G top/bottom, e/E next/previous error, q quits[-]")

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(view, 0, 1, true).
		AddItem(footer, 1, 0, false)

	app := tview.NewApplication()
	current := -1
	jump := func(step int) {
		if len(errorRows) == 0 {
			return
		}
		current = (current + step + len(errorRows)) % len(errorRows)
		view.ScrollTo(errorRows[current], 0)
	}
	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEsc || event.Key() == tcell.KeyCtrlQ {
			app.Stop()
			return nil
		}
		if event.Key() != tcell.KeyRune {
			return event
		}
		switch event.Rune() {
		case 'q':
			app.Stop()
		case 'g':
			view.ScrollToBeginning()
		case 'G':
			view.ScrollToEnd()
		case 'e':
			jump(1)
		case 'E':
			jump(-1)
		default:
			return event
		}
		return nil
	})

	if err := app.SetRoot(layout, true).SetFocus(view).Run(); err != nil {
		return fmt.Errorf("log viewer failed: %w", err)
	}
	return nil
}
