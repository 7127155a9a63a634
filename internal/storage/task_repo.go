package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type TaskRepo struct {
	db DBTX
}

func NewTaskRepo(db DBTX) *TaskRepo {
	return &TaskRepo{db: db}
}

type TaskInsert struct {
	Title       string
	Description *string
	Project     *string
	Area        *string
	Notebook    *string

	DueDate  *string
	Priority int
	Status   string
	Tags     []string

	RecurType     *string
	RecurInterval int
	RecurUntil    *string

	Position            int
	LinkedTransactionID *string
}

const taskColumns = `id, title, description, project, area, notebook,
	due_date, priority, status, tags,
	recur_type, recur_interval, recur_until,
	position, completed_at, linked_transaction_id, created_at`

func (r *TaskRepo) Insert(ctx context.Context, in TaskInsert) (int64, error) {
	var tagsJSON *string
	if len(in.Tags) > 0 {
		data, err := json.Marshal(in.Tags)
		if err != nil {
			return 0, fmt.Errorf("marshal tags: %w", err)
		}
		s := string(data)
		tagsJSON = &s
	}

	interval := in.RecurInterval
	if interval < 1 {
		interval = 1
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (
			title, description, project, area, notebook,
			due_date, priority, status, tags,
			recur_type, recur_interval, recur_until,
			position, linked_transaction_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, in.Title, in.Description, in.Project, in.Area, in.Notebook,
		in.DueDate, in.Priority, in.Status, tagsJSON,
		in.RecurType, interval, in.RecurUntil,
		in.Position, in.LinkedTransactionID)
	if err != nil {
		return 0, fmt.Errorf("task insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("task last insert id: %w", err)
	}
	return id, nil
}

func (r *TaskRepo) Get(ctx context.Context, id int64) (*Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

func (r *TaskRepo) ListAll(ctx context.Context) ([]Task, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY position ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("task list: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("task list rows: %w", err)
	}
	return out, nil
}

func (r *TaskRepo) MarkDone(ctx context.Context, id int64, completedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE tasks SET status = 'done', completed_at = ? WHERE id = ?`, completedAt, id)
	if err != nil {
		return fmt.Errorf("task mark done: %w", err)
	}
	return nil
}

// Reopen puts a done task back to pending and clears its completion time.
func (r *TaskRepo) Reopen(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE tasks SET status = 'pending', completed_at = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("task reopen: %w", err)
	}
	return nil
}

func (r *TaskRepo) UpdateStatus(ctx context.Context, id int64, status string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE tasks SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("task update status: %w", err)
	}
	return nil
}

// SetPosition updates ordering only; it reports whether the task exists so
// bulk reorder can surface per-id failures.
func (r *TaskRepo) SetPosition(ctx context.Context, id int64, position int) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE tasks SET position = ? WHERE id = ?`, position, id)
	if err != nil {
		return false, fmt.Errorf("task set position: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("task set position rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *TaskRepo) MaxPosition(ctx context.Context) (int, error) {
	row := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), 0) FROM tasks`)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("task max position: %w", err)
	}
	return n, nil
}

func (r *TaskRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("task delete: %w", err)
	}
	return nil
}

func (r *TaskRepo) InsertSubtask(ctx context.Context, taskID int64, title string, position int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO subtasks (task_id, title, position) VALUES (?, ?, ?)
	`, taskID, title, position)
	if err != nil {
		return 0, fmt.Errorf("subtask insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("subtask last insert id: %w", err)
	}
	return id, nil
}

func (r *TaskRepo) GetSubtask(ctx context.Context, id int64) (*Subtask, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, task_id, title, done, position FROM subtasks WHERE id = ?`, id)
	var (
		st   Subtask
		done int
	)
	if err := row.Scan(&st.ID, &st.TaskID, &st.Title, &done, &st.Position); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("subtask scan: %w", err)
	}
	st.Done = done != 0
	return &st, nil
}

func (r *TaskRepo) ListSubtasks(ctx context.Context, taskID int64) ([]Subtask, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, task_id, title, done, position
		FROM subtasks
		WHERE task_id = ?
		ORDER BY position ASC, id ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("subtask list: %w", err)
	}
	defer rows.Close()

	var out []Subtask
	for rows.Next() {
		var (
			st   Subtask
			done int
		)
		if err := rows.Scan(&st.ID, &st.TaskID, &st.Title, &done, &st.Position); err != nil {
			return nil, fmt.Errorf("subtask scan: %w", err)
		}
		st.Done = done != 0
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("subtask rows: %w", err)
	}
	return out, nil
}

func (r *TaskRepo) SetSubtaskDone(ctx context.Context, id int64, done bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE subtasks SET done = ? WHERE id = ?`, boolToInt(done), id)
	if err != nil {
		return fmt.Errorf("subtask set done: %w", err)
	}
	return nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func scanTask(row scanner) (*Task, error) {
	var (
		id          int64
		title       string
		description sql.NullString
		project     sql.NullString
		area        sql.NullString
		notebook    sql.NullString
		dueDate     sql.NullString
		priority    int
		status      string
		tagsRaw     sql.NullString
		recurType   sql.NullString
		recurIntvl  int
		recurUntil  sql.NullString
		position    int
		completedAt sql.NullTime
		linkedTx    sql.NullString
		createdAt   time.Time
	)

	if err := row.Scan(
		&id, &title, &description, &project, &area, &notebook,
		&dueDate, &priority, &status, &tagsRaw,
		&recurType, &recurIntvl, &recurUntil,
		&position, &completedAt, &linkedTx, &createdAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("task scan: %w", err)
	}

	t := &Task{
		ID:            id,
		Title:         title,
		Priority:      priority,
		Status:        status,
		RecurInterval: recurIntvl,
		Position:      position,
		CreatedAt:     createdAt,
	}
	t.Description = nullString(description)
	t.Project = nullString(project)
	t.Area = nullString(area)
	t.Notebook = nullString(notebook)
	t.DueDate = nullString(dueDate)
	t.RecurType = nullString(recurType)
	t.RecurUntil = nullString(recurUntil)
	t.LinkedTransactionID = nullString(linkedTx)
	if completedAt.Valid {
		v := completedAt.Time
		t.CompletedAt = &v
	}
	if tagsRaw.Valid && tagsRaw.String != "" {
		if err := json.Unmarshal([]byte(tagsRaw.String), &t.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	return t, nil
}
