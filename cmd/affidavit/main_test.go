package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/a3tai/mcp-affidavit/internal/testutil"
)

const (
	testVersion = "1.2.3"
	devVersion  = "dev"
)

const testRecordJSON = `{
  "subject_name": "Jane Doe",
  "case_file": "CV-2024-0113",
  "party_name": "Doe Holdings Ltd.",
  "lawyer_name": "R. Smith",
  "date": "2024-05-01",
  "stat_declaration": "Sworn",
  "address": "1 Main St",
  "email": "jane@example.com",
  "phone": "555-0100",
  "party_role": "Witness"
}`

func TestPrintVersion(t *testing.T) {
	oldVersion := version
	oldBuildTime := buildTime
	oldGitCommit := gitCommit

	version = testVersion
	buildTime = "2023-12-01_10:30:00"
	gitCommit = "abc123"

	defer func() {
		version = oldVersion
		buildTime = oldBuildTime
		gitCommit = oldGitCommit
	}()

	var buf bytes.Buffer
	printVersion(&buf)
	output := buf.String()

	expectedStrings := []string{
		"MCP Affidavit",
		"Version: " + testVersion,
		"Build Time: 2023-12-01_10:30:00",
		"Git Commit: abc123",
		"Built with:",
	}

	for _, expected := range expectedStrings {
		if !strings.Contains(output, expected) {
			t.Errorf("printVersion() output missing expected string: %s\nActual output:\n%s", expected, output)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	if version != devVersion {
		t.Skip("version set by build flags")
	}

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out.String(), "Version: dev") {
		t.Errorf("unexpected version output:\n%s", out.String())
	}
}

func TestRootCommandSubcommands(t *testing.T) {
	root := newRootCmd()

	want := []string{"serve", "compose", "pdf", "convert", "generate", "version"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %s not registered", name)
		}
	}

	for _, flag := range []string{"mode", "template-dir", "output-dir", "label-policy", "store", flagEnvFile} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag --%s not registered", flag)
		}
	}
}

// testWorkspace writes templates, a case record and one exhibit
func testWorkspace(t *testing.T) (args []string, outDir string) {
	t.Helper()
	dir := t.TempDir()

	templateDir := filepath.Join(dir, "templates")
	if err := os.Mkdir(templateDir, 0o755); err != nil {
		t.Fatalf("failed to create template dir: %v", err)
	}
	testutil.WriteTemplates(t, templateDir, 2, 1, 3)

	outDir = filepath.Join(dir, "out")
	record := testutil.WriteFile(t, dir, "case.json", []byte(testRecordJSON))
	exhibitPath := testutil.WriteFile(t, dir, "receipt.pdf", testutil.PDF(2, 500))

	args = []string{
		"--env-file", filepath.Join(dir, "missing.env"),
		"--template-dir", templateDir,
		"--scratch-dir", filepath.Join(dir, "scratch"),
		"--output-dir", outDir,
		"--record", record,
		exhibitPath,
	}
	return args, outDir
}

func TestComposeCommand(t *testing.T) {
	args, outDir := testWorkspace(t)

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(append([]string{"compose", "--log-level", "error"}, args...))

	if err := root.Execute(); err != nil {
		t.Fatalf("compose command failed: %v", err)
	}

	want := filepath.Join(outDir, "JANE DOE_affidavit_with_exhibits.docx")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("expected %s to be written: %v", want, err)
	}
	if !strings.Contains(out.String(), "wrote "+want) {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestComposeCommand_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(t *testing.T, args []string) []string
		want   string
	}{
		{
			name: "missing record flag",
			modify: func(_ *testing.T, args []string) []string {
				return args[:8]
			},
			want: "record",
		},
		{
			name: "missing exhibit file",
			modify: func(_ *testing.T, args []string) []string {
				return append(args[:len(args)-1], "does-not-exist.pdf")
			},
			want: "does not exist",
		},
		{
			name: "exhibit is not a PDF",
			modify: func(t *testing.T, args []string) []string {
				notes := filepath.Join(filepath.Dir(args[len(args)-1]), "notes.txt")
				if err := os.WriteFile(notes, []byte("plain text"), 0o600); err != nil {
					t.Fatalf("failed to write notes: %v", err)
				}
				return append(args[:len(args)-1], notes)
			},
			want: "not a pdf file",
		},
		{
			name: "invalid label policy",
			modify: func(_ *testing.T, args []string) []string {
				return append([]string{"--label-policy", "wrap"}, args...)
			},
			want: "invalid configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, _ := testWorkspace(t)

			root := newRootCmd()
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})
			root.SetArgs(append([]string{"compose"}, tt.modify(t, args)...))

			err := root.Execute()
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should contain %q", err.Error(), tt.want)
			}
		})
	}
}
