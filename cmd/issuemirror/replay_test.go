package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telhawk-systems/issuemirror/internal/models"
	"github.com/telhawk-systems/issuemirror/internal/notion"
	"github.com/telhawk-systems/issuemirror/internal/notion/notiontest"
	"github.com/telhawk-systems/issuemirror/internal/reconciler"
	"github.com/telhawk-systems/issuemirror/internal/service"
	"gopkg.in/yaml.v3"
)

const payload = `{
	"object_kind": "issue",
	"object_attributes": {
		"id": 42,
		"title": "Fix crash",
		"url": "https://gitlab.example.com/team/app/-/issues/42",
		"created_at": "2024-03-01T10:00:00Z",
		"labels": ["Estado :: Abierto", "Prioridad :: Alta", "Modulo :: API", "Tipo :: Bug"]
	}
}`

func TestReadPayload(t *testing.T) {
	body, err := readPayload(strings.NewReader("from-stdin"), "-")
	require.NoError(t, err)
	assert.Equal(t, "from-stdin", string(body))

	path := filepath.Join(t.TempDir(), "event.json")
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))
	body, err = readPayload(nil, path)
	require.NoError(t, err)
	assert.JSONEq(t, payload, string(body))

	_, err = readPayload(nil, filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestWriteOutcome(t *testing.T) {
	outcome := service.Outcome{
		ObjectKind: models.ObjectKindIssue,
		Status:     service.OutcomeReconciled,
		Result:     &reconciler.Result{IssueID: "42", Action: reconciler.ActionCreate, PageID: "page-1", OK: true},
	}

	var jsonOut bytes.Buffer
	require.NoError(t, writeOutcome(&jsonOut, "json", outcome))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(jsonOut.Bytes(), &decoded))
	assert.Equal(t, "reconciled", decoded["status"])

	var yamlOut bytes.Buffer
	require.NoError(t, writeOutcome(&yamlOut, "yaml", outcome))
	var fromYAML map[string]any
	require.NoError(t, yaml.Unmarshal(yamlOut.Bytes(), &fromYAML))
	assert.Equal(t, "create", fromYAML["result"].(map[string]any)["action"])

	assert.Error(t, writeOutcome(&bytes.Buffer{}, "table", outcome))
}

func TestReplayCommand(t *testing.T) {
	fake := notiontest.NewServer()
	defer fake.Close()

	t.Chdir(t.TempDir())
	t.Setenv("ISSUEMIRROR_NOTION_BASE_URL", fake.URL)
	t.Setenv("NOTION_API_TOKEN", "secret_token")
	t.Setenv("NOTION_DATABASE_ID", "db-1")
	t.Setenv("ISSUEMIRROR_LOGGING_LEVEL", "error")

	path := filepath.Join(t.TempDir(), "event.json")
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"replay", path})
	require.NoError(t, cmd.Execute())

	var outcome service.Outcome
	require.NoError(t, json.Unmarshal(out.Bytes(), &outcome))
	assert.Equal(t, service.OutcomeReconciled, outcome.Status)
	assert.Equal(t, reconciler.ActionCreate, outcome.Result.Action)

	creates := fake.CallsTo("create")
	require.Len(t, creates, 1)
	assert.Equal(t, "Bearer secret_token", creates[0].Header.Get("Authorization"))
	props := creates[0].Body["properties"].(map[string]any)
	assert.Equal(t, "Abierto", notiontest.SelectName(props, notion.PropEstado))
}
