package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var fiveLines = []string{
	"2024-03-15 10:00:00 ERROR Connection failed",
	"2024-03-15 10:01:00 INFO User john logged in from 192.168.1.100",
	"2024-03-15 10:02:00 WARNING High CPU usage: 95%",
	"2024-03-15 10:03:00 INFO Request completed in 120ms",
	"2024-03-15 10:04:00 ERROR Disk failure on /dev/sda",
}

var hdfsLines = []string{
	"081109 203518 148 INFO dfs.DataNode$PacketResponder: PacketResponder 1 for block blk_38865049064139660 terminating",
	"081109 203518 143 INFO dfs.DataNode$DataXceiver: Receiving block blk_-1608999687919862906 src: /10.250.19.102:54106 dest: /10.250.19.102:50010",
	"081109 203519 145 INFO dfs.DataNode$DataXceiver: Receiving block blk_-1608999687919862906 src: /10.250.10.6:40524 dest: /10.250.10.6:50010",
}

func resetViper() {
	viper.Reset()
	setDefaults()
}

// newTestCmd builds a throwaway command with the given flag registrations.
func newTestCmd(name string, out, errOut *bytes.Buffer, register ...func(*cobra.Command)) *cobra.Command {
	cmd := &cobra.Command{Use: name}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	for _, r := range register {
		r(cmd)
	}
	return cmd
}

func setFlags(t *testing.T, cmd *cobra.Command, kv ...string) {
	t.Helper()
	for i := 0; i+1 < len(kv); i += 2 {
		if err := cmd.Flags().Set(kv[i], kv[i+1]); err != nil {
			t.Fatalf("Set(%s) error = %v", kv[i], err)
		}
	}
}

func writeTempFile(t *testing.T, dir string, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(joinLines(lines)), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func joinLines(lines []string) string {
	buf := bytes.Buffer{}
	for i, line := range lines {
		buf.WriteString(line)
		if i < len(lines)-1 {
			buf.WriteString("\n")
		}
	}
	return buf.String()
}
