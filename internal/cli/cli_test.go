package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/boardimport/internal/board"
	"github.com/JonMunkholm/boardimport/internal/board/sqlite"
	"github.com/JonMunkholm/boardimport/internal/importer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tasksCSV = `Title,Status,Owner,Tags
Write docs,Todo,Ann,"docs, writing"
Ship it,Doing,,release
Review,Todo,,
`

type harness struct {
	t      *testing.T
	dir    string
	dbPath string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	for _, k := range []string{"DB_DRIVER", "DATABASE_URL", "DB_URL", "SQLITE_PATH", "DB_AUTO_MIGRATE"} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	return &harness{t: t, dir: dir, dbPath: filepath.Join(dir, "board.db")}
}

func (h *harness) file(name, content string) string {
	h.t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(h.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (h *harness) runWithInput(stdin string, args ...string) (string, string, error) {
	h.t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{
		"--env-file", filepath.Join(h.dir, "missing.env"),
		"--sqlite-path", h.dbPath,
	}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func (h *harness) run(args ...string) (string, string, error) {
	h.t.Helper()
	return h.runWithInput("", args...)
}

func (h *harness) countTasks(ideaID string) int {
	h.t.Helper()
	db, err := sqlite.Open(h.dbPath)
	require.NoError(h.t, err)
	defer db.Close()
	n, err := sqlite.NewStore(db, nil).CountTasks(context.Background(), ideaID)
	require.NoError(h.t, err)
	return n
}

func (h *harness) showBoard(ideaID string) boardView {
	h.t.Helper()
	out, _, err := h.run("board", "show", "--idea", ideaID, "-o", "json")
	require.NoError(h.t, err)
	var view boardView
	require.NoError(h.t, json.Unmarshal([]byte(out), &view))
	return view
}

func TestMigrate(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run("migrate")
	require.NoError(t, err)
	assert.Equal(t, "sqlite schema at version 1\n", out)

	out, _, err = h.run("migrate", "-o", "json")
	require.NoError(t, err)
	var status migrateStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, migrateStatus{Driver: "sqlite", Version: 1}, status)
}

func TestUnknownOutputFormat(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("migrate", "-o", "xml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestBoardAddMemberAndShow(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run("board", "add-member", "--idea", "idea-1", "--user", "u1", "--name", "Ann Lee", "--email", "ann@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Ann Lee is a member of idea-1")

	_, _, err = h.run("board", "add-member", "--idea", "idea-1", "--user", "u1", "--name", "Ann B. Lee")
	require.NoError(t, err)

	view := h.showBoard("idea-1")
	require.Len(t, view.Members, 1)
	assert.Equal(t, "Ann B. Lee", view.Members[0].FullName)

	out, _, err = h.run("board", "show", "--idea", "idea-1")
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(out), "members")
	assert.Contains(t, out, "Ann B. Lee")
}

func TestBoardAddMember_RequiresName(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("board", "add-member", "--idea", "idea-1", "--user", "u1", "--name", "  ")
	assert.ErrorContains(t, err, "--name")
}

func TestPreview_Table(t *testing.T) {
	h := newHarness(t)
	path := h.file("tasks.csv", tasksCSV)

	out, _, err := h.run("preview", "--idea", "idea-1", path)
	require.NoError(t, err)

	assert.Contains(t, out, "Write docs")
	assert.Contains(t, out, "(new column)")
	assert.Contains(t, out, "docs, writing")
	assert.Equal(t, 0, h.countTasks("idea-1"))
}

func TestPreview_JSONFromStdin(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.runWithInput("- one\n- two\n", "preview", "--idea", "idea-1", "--format", "text", "-o", "json", "-")
	require.NoError(t, err)

	var preview importer.Preview
	require.NoError(t, json.Unmarshal([]byte(out), &preview))
	assert.Equal(t, importer.FormatText, preview.Format)
	require.Len(t, preview.Tasks, 2)
	assert.Equal(t, "one", preview.Tasks[0].Title)
}

func TestPreview_UnknownFormat(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("preview", "--idea", "idea-1", "--format", "xlsx", h.file("a.csv", tasksCSV))
	assert.ErrorIs(t, err, importer.ErrUnknownFormat)
}

func TestImport_Bulk(t *testing.T) {
	h := newHarness(t)
	path := h.file("tasks.csv", tasksCSV)

	out, _, err := h.run("import", "--idea", "idea-1", "--actor", "u1", path)
	require.NoError(t, err)
	assert.Contains(t, out, "3 of 3 tasks")

	assert.Equal(t, 3, h.countTasks("idea-1"))

	view := h.showBoard("idea-1")
	titles := make([]string, len(view.Columns))
	for i, c := range view.Columns {
		titles[i] = c.Title
	}
	assert.ElementsMatch(t, []string{"Todo", "Doing"}, titles)

	names := make([]string, len(view.Labels))
	for i, l := range view.Labels {
		names[i] = l.Name
	}
	assert.ElementsMatch(t, []string{"docs", "writing", "release"}, names)
}

func TestImport_SequentialJSON(t *testing.T) {
	h := newHarness(t)
	path := h.file("tasks.csv", tasksCSV)

	out, _, err := h.run("import", "--idea", "idea-1", "--actor", "u1", "--mode", "sequential", "-o", "json", path)
	require.NoError(t, err)

	var result importer.RunResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, importer.ModeSequential, result.Mode)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Created)
	assert.Equal(t, 2, result.ColumnsCreated)
	assert.Equal(t, 3, result.LabelsCreated)
	assert.Empty(t, result.Failed)
}

func TestImport_DryRunWritesNothing(t *testing.T) {
	h := newHarness(t)
	path := h.file("tasks.csv", tasksCSV)

	out, _, err := h.run("import", "--idea", "idea-1", "--actor", "u1", "--dry-run", path)
	require.NoError(t, err)
	assert.Contains(t, out, "dry run")
	assert.Contains(t, out, "3 of 3 tasks")

	assert.Equal(t, 0, h.countTasks("idea-1"))
	assert.Empty(t, h.showBoard("idea-1").Columns)
}

func TestImport_MappingFile(t *testing.T) {
	h := newHarness(t)
	data := h.file("tasks.csv", "Thing,Where,Extra\nAlpha,Backlog,x\nBeta,Backlog,y\n")
	mapping := h.file("map.yaml", "csv:\n  thing: title\n  Where: column\n  Extra: skip\n")

	out, _, err := h.run("import", "--idea", "idea-1", "--actor", "u1", "--mapping", mapping, "-o", "json", data)
	require.NoError(t, err)

	var result importer.RunResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 2, result.Created)

	view := h.showBoard("idea-1")
	require.Len(t, view.Columns, 1)
	assert.Equal(t, "Backlog", view.Columns[0].Title)
}

func TestImport_MappingFileErrors(t *testing.T) {
	h := newHarness(t)
	data := h.file("tasks.csv", tasksCSV)

	tests := []struct {
		name    string
		mapping string
		want    string
	}{
		{"unknown field", "csv:\n  Title: headline\n", "unknown field"},
		{"unknown key", "columnz:\n  Todo: __new__\n", "parse mapping"},
		{"missing header", "csv:\n  Nope: title\n", "headers not in the input: Nope"},
		{"empty column target", "columns:\n  Todo: \"\"\n", "empty target"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapping := h.file(strings.ReplaceAll(tt.name, " ", "_")+".yaml", tt.mapping)
			_, _, err := h.run("import", "--idea", "idea-1", "--actor", "u1", "--mapping", mapping, data)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestImport_NoDefaultColumn(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.runWithInput("just a task\n", "import", "--idea", "idea-1", "--actor", "u1", "--format", "text", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import:")
	assert.Equal(t, 0, h.countTasks("idea-1"))
}

func TestImport_InvalidMode(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("import", "--idea", "idea-1", "--actor", "u1", "--mode", "turbo", h.file("a.csv", tasksCSV))
	assert.ErrorContains(t, err, "unknown mode")
}

func TestImport_RequiresActor(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("import", "--idea", "idea-1", h.file("a.csv", tasksCSV))
	assert.ErrorContains(t, err, "actor")
}

func TestBoardCopy_KeepsTailPositions(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("migrate")
	require.NoError(t, err)

	db, err := sqlite.Open(h.dbPath)
	require.NoError(t, err)
	defer db.Close()
	store := sqlite.NewStore(db, nil)
	ctx := context.Background()

	cols, err := store.InsertColumns(ctx, []board.Column{{IdeaID: "idea-1", Title: "Todo"}})
	require.NoError(t, err)
	_, err = store.InsertTasks(ctx, []board.Task{{IdeaID: "idea-1", ColumnID: cols[0].ID, Title: "old", Position: 7000, CreatedBy: "u1"}})
	require.NoError(t, err)
	require.NoError(t, store.AddTeamMember(ctx, "idea-1", board.TeamMember{UserID: "u1", FullName: "Ann"}))

	dst, err := boardCopy(ctx, store, "idea-1")
	require.NoError(t, err)

	tails, err := dst.MaxTaskPositions(ctx, []string{cols[0].ID})
	require.NoError(t, err)
	assert.Equal(t, 7000, tails[cols[0].ID])

	members, err := dst.ListTeamMembers(ctx, "idea-1")
	require.NoError(t, err)
	assert.Len(t, members, 1)
}
