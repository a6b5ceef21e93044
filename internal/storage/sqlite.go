// Package storage provides the SQLite persistence layer shared by tasks,
// conversations, and pending chat commands.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bonsai-todo/bonsai/internal/chat"
	"github.com/bonsai-todo/bonsai/internal/conversations"
	"github.com/bonsai-todo/bonsai/internal/tasks"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS tasks (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	done        INTEGER NOT NULL DEFAULT 0,
	priority    INTEGER NOT NULL DEFAULT 3,
	due         TEXT,
	recurrence  TEXT,
	parent_id   TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id, done);
CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(due) WHERE due IS NOT NULL;

CREATE TABLE IF NOT EXISTS tags (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	name       TEXT NOT NULL,
	color      TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_tags_user_name ON tags(user_id, lower(name));

CREATE TABLE IF NOT EXISTS task_tags (
	task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	tag_id  TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	PRIMARY KEY (task_id, tag_id)
);

CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS messages (
	id                TEXT PRIMARY KEY,
	conversation_id   TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role              TEXT NOT NULL,
	content           TEXT NOT NULL,
	generated_command TEXT NOT NULL DEFAULT '',
	confidence        REAL,
	created_at        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);

CREATE TABLE IF NOT EXISTS pending_commands (
	conversation_id TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	command         TEXT NOT NULL,
	created_at      TEXT NOT NULL
);
`

const timeFormat = time.RFC3339Nano

// Store is the SQLite-backed implementation of the task, conversation, and
// pending command stores.
type Store struct {
	db *sql.DB
}

var (
	_ tasks.Store         = (*Store)(nil)
	_ conversations.Store = (*Store)(nil)
	_ chat.PendingStore   = (*Store)(nil)
)

// Open opens (creating if needed) the database at path and applies the
// schema. The parent directory is created if missing.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent request handlers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- tasks.Store ---

const taskColumns = `id, user_id, title, description, done, priority, due, recurrence, parent_id, created_at, updated_at`

func (s *Store) CreateTask(t *tasks.Task) error {
	rec, err := recurrenceJSON(t.Recurrence)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Title, t.Description, boolInt(t.Done), t.Priority,
		timePtr(t.Due), rec, t.ParentID,
		t.CreatedAt.Format(timeFormat), t.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *Store) GetTask(userID, id string) (*tasks.Task, error) {
	row := s.db.QueryRow(
		`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?`, id, userID)
	t, err := scanTask(row)
	if err != nil {
		return nil, err
	}
	tags, err := s.taskTagNames(id)
	if err != nil {
		return nil, err
	}
	t.Tags = tags
	return t, nil
}

func (s *Store) ListTasks(userID string, filter tasks.ListFilter) ([]*tasks.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ?`
	args := []any{userID}

	switch filter.Status {
	case tasks.StatusPending:
		q += " AND done = 0"
	case tasks.StatusCompleted:
		q += " AND done = 1"
	}
	if filter.Tag != "" {
		q += ` AND id IN (SELECT tt.task_id FROM task_tags tt
		       JOIN tags tg ON tg.id = tt.tag_id
		       WHERE tg.name = ? COLLATE NOCASE)`
		args = append(args, filter.Tag)
	}
	q += " ORDER BY done ASC, priority ASC, created_at ASC"
	if filter.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []*tasks.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.fillTags(userID, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateTask(t *tasks.Task) error {
	rec, err := recurrenceJSON(t.Recurrence)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(
		`UPDATE tasks SET title = ?, description = ?, done = ?, priority = ?, due = ?,
		     recurrence = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		t.Title, t.Description, boolInt(t.Done), t.Priority, timePtr(t.Due),
		rec, t.UpdatedAt.Format(timeFormat), t.ID, t.UserID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return verifyRowChanged(res, tasks.ErrNotFound)
}

func (s *Store) DeleteTask(userID, id string) error {
	res, err := s.db.Exec(`DELETE FROM tasks WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return verifyRowChanged(res, tasks.ErrNotFound)
}

func (s *Store) ListDueTasks(before time.Time) ([]*tasks.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskColumns+`
		 FROM tasks WHERE done = 0 AND due IS NOT NULL AND due <= ?
		 ORDER BY due ASC`, before.UTC().Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("list due tasks: %w", err)
	}
	defer rows.Close()

	var out []*tasks.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- tasks.TagStore ---

const tagColumns = `t.id, t.user_id, t.name, t.color,
	(SELECT COUNT(*) FROM task_tags tt WHERE tt.tag_id = t.id), t.created_at`

func (s *Store) CreateTag(t *tasks.Tag) error {
	_, err := s.db.Exec(
		`INSERT INTO tags (id, user_id, name, color, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Name, t.Color, t.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert tag: %w", err)
	}
	return nil
}

func (s *Store) GetTag(userID, id string) (*tasks.Tag, error) {
	row := s.db.QueryRow(
		`SELECT `+tagColumns+` FROM tags t WHERE t.id = ? AND t.user_id = ?`, id, userID)
	return scanTag(row)
}

func (s *Store) GetTagByName(userID, name string) (*tasks.Tag, error) {
	row := s.db.QueryRow(
		`SELECT `+tagColumns+` FROM tags t
		 WHERE t.user_id = ? AND t.name = ? COLLATE NOCASE`, userID, name)
	return scanTag(row)
}

func (s *Store) ListTags(userID string) ([]*tasks.Tag, error) {
	rows, err := s.db.Query(
		`SELECT `+tagColumns+` FROM tags t WHERE t.user_id = ? ORDER BY t.name COLLATE NOCASE`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var out []*tasks.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) UpdateTag(t *tasks.Tag) error {
	res, err := s.db.Exec(
		`UPDATE tags SET name = ?, color = ? WHERE id = ? AND user_id = ?`,
		t.Name, t.Color, t.ID, t.UserID,
	)
	if err != nil {
		return fmt.Errorf("update tag: %w", err)
	}
	return verifyRowChanged(res, tasks.ErrTagNotFound)
}

func (s *Store) DeleteTag(userID, id string) error {
	res, err := s.db.Exec(`DELETE FROM tags WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	return verifyRowChanged(res, tasks.ErrTagNotFound)
}

func (s *Store) SetTaskTags(userID, taskID string, tagIDs []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM task_tags WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("clear task tags: %w", err)
	}
	for _, tagID := range tagIDs {
		if _, err := tx.Exec(
			`INSERT INTO task_tags (task_id, tag_id) VALUES (?, ?)`, taskID, tagID); err != nil {
			return fmt.Errorf("tag task: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) taskTagNames(taskID string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT tg.name FROM task_tags tt JOIN tags tg ON tg.id = tt.tag_id
		 WHERE tt.task_id = ? ORDER BY tg.name COLLATE NOCASE`, taskID)
	if err != nil {
		return nil, fmt.Errorf("task tags: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// fillTags populates Tags for a batch of the user's tasks with one query.
func (s *Store) fillTags(userID string, list []*tasks.Task) error {
	if len(list) == 0 {
		return nil
	}
	rows, err := s.db.Query(
		`SELECT tt.task_id, tg.name FROM task_tags tt JOIN tags tg ON tg.id = tt.tag_id
		 WHERE tg.user_id = ? ORDER BY tg.name COLLATE NOCASE`, userID)
	if err != nil {
		return fmt.Errorf("task tags: %w", err)
	}
	defer rows.Close()

	byTask := make(map[string][]string)
	for rows.Next() {
		var taskID, name string
		if err := rows.Scan(&taskID, &name); err != nil {
			return err
		}
		byTask[taskID] = append(byTask[taskID], name)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, t := range list {
		t.Tags = byTask[t.ID]
	}
	return nil
}

func scanTag(row rowScanner) (*tasks.Tag, error) {
	var t tasks.Tag
	var created string
	err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.Color, &t.TaskCount, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tasks.ErrTagNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan tag: %w", err)
	}
	t.CreatedAt = parseTime(created)
	return &t, nil
}

// --- conversations.Store ---

func (s *Store) CreateConversation(c *conversations.Conversation) error {
	_, err := s.db.Exec(
		`INSERT INTO conversations (id, user_id, title, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Title, c.CreatedAt.Format(timeFormat), c.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (s *Store) GetConversation(userID, id string) (*conversations.Conversation, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, title, created_at, updated_at
		 FROM conversations WHERE id = ? AND user_id = ?`, id, userID)

	var c conversations.Conversation
	var created, updated string
	err := row.Scan(&c.ID, &c.UserID, &c.Title, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, conversations.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updated)
	return &c, nil
}

func (s *Store) ListConversations(userID string) ([]*conversations.Conversation, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, title, created_at, updated_at
		 FROM conversations WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []*conversations.Conversation
	for rows.Next() {
		var c conversations.Conversation
		var created, updated string
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.CreatedAt = parseTime(created)
		c.UpdatedAt = parseTime(updated)
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *Store) DeleteConversation(userID, id string) error {
	res, err := s.db.Exec(`DELETE FROM conversations WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if err := verifyRowChanged(res, conversations.ErrNotFound); err != nil {
		return err
	}
	// Cascade covers messages; pending commands are keyed separately.
	_, _ = s.db.Exec(`DELETE FROM pending_commands WHERE conversation_id = ?`, id)
	return nil
}

func (s *Store) TouchConversation(id string, updatedAt time.Time) error {
	_, err := s.db.Exec(`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		updatedAt.Format(timeFormat), id)
	return err
}

func (s *Store) SetConversationTitle(id, title string) error {
	_, err := s.db.Exec(`UPDATE conversations SET title = ? WHERE id = ?`, title, id)
	return err
}

func (s *Store) AppendMessage(m *conversations.Message) error {
	_, err := s.db.Exec(
		`INSERT INTO messages (id, conversation_id, role, content, generated_command, confidence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, string(m.Role), m.Content, m.GeneratedCommand,
		m.Confidence, m.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *Store) ListMessages(conversationID string, limit int) ([]*conversations.Message, error) {
	q := `SELECT id, conversation_id, role, content, generated_command, confidence, created_at
	      FROM messages WHERE conversation_id = ? ORDER BY created_at DESC, rowid DESC`
	args := []any{conversationID}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []*conversations.Message
	for rows.Next() {
		var m conversations.Message
		var role, created string
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &m.GeneratedCommand, &m.Confidence, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = conversations.Role(role)
		m.CreatedAt = parseTime(created)
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first query, chronological result.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// --- chat.PendingStore ---

func (s *Store) PutPending(p *chat.PendingCommand) error {
	data, err := json.Marshal(p.Command)
	if err != nil {
		return fmt.Errorf("marshal pending command: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO pending_commands (conversation_id, user_id, command, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(conversation_id) DO UPDATE SET user_id = excluded.user_id,
		     command = excluded.command, created_at = excluded.created_at`,
		p.ConversationID, p.UserID, string(data), p.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("store pending command: %w", err)
	}
	return nil
}

func (s *Store) GetPending(conversationID string) (*chat.PendingCommand, error) {
	row := s.db.QueryRow(
		`SELECT conversation_id, user_id, command, created_at
		 FROM pending_commands WHERE conversation_id = ?`, conversationID)

	var p chat.PendingCommand
	var data, created string
	err := row.Scan(&p.ConversationID, &p.UserID, &data, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chat.ErrNoPending
	}
	if err != nil {
		return nil, fmt.Errorf("scan pending command: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &p.Command); err != nil {
		return nil, fmt.Errorf("unmarshal pending command: %w", err)
	}
	p.CreatedAt = parseTime(created)
	return &p, nil
}

func (s *Store) DeletePending(conversationID string) error {
	_, err := s.db.Exec(`DELETE FROM pending_commands WHERE conversation_id = ?`, conversationID)
	return err
}

// Stats are the aggregate counts served by the metrics endpoint.
type Stats struct {
	TasksPending   int
	TasksCompleted int
	ActiveUsers    int
	Conversations  int
}

// CountStats returns aggregate counts across all users.
func (s *Store) CountStats() (Stats, error) {
	var st Stats
	row := s.db.QueryRow(`SELECT
		(SELECT COUNT(*) FROM tasks WHERE done = 0),
		(SELECT COUNT(*) FROM tasks WHERE done = 1),
		(SELECT COUNT(*) FROM (SELECT user_id FROM tasks UNION SELECT user_id FROM conversations)),
		(SELECT COUNT(*) FROM conversations)`)
	if err := row.Scan(&st.TasksPending, &st.TasksCompleted, &st.ActiveUsers, &st.Conversations); err != nil {
		return Stats{}, fmt.Errorf("count stats: %w", err)
	}
	return st, nil
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*tasks.Task, error) {
	var t tasks.Task
	var done int
	var due, rec sql.NullString
	var created, updated string
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &done, &t.Priority,
		&due, &rec, &t.ParentID, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tasks.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	t.Done = done != 0
	if due.Valid {
		d := parseTime(due.String)
		t.Due = &d
	}
	if rec.Valid && rec.String != "" {
		var r tasks.Recurrence
		if err := json.Unmarshal([]byte(rec.String), &r); err != nil {
			return nil, fmt.Errorf("unmarshal recurrence: %w", err)
		}
		t.Recurrence = &r
	}
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)
	return &t, nil
}

func recurrenceJSON(r *tasks.Recurrence) (any, error) {
	if r == nil {
		return nil, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal recurrence: %w", err)
	}
	return string(data), nil
}

func verifyRowChanged(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeFormat, s)
	return t
}
