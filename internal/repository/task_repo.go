package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-file-collector/internal/model"
)

type TaskRepository struct {
	pool *pgxpool.Pool
}

func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

func (r *TaskRepository) Create(ctx context.Context, task model.Task) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO tasks (id, name, description, status, folder_path, created_at, uploaded_files_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		task.ID, task.Name, task.Description, string(task.Status),
		task.FolderPath, task.CreatedAt, task.UploadedFilesCount)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) Get(ctx context.Context, id string) (model.Task, error) {
	var task model.Task
	var status string
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, description, status, folder_path, created_at, uploaded_files_count
		 FROM tasks WHERE id = $1`, id).
		Scan(&task.ID, &task.Name, &task.Description, &status,
			&task.FolderPath, &task.CreatedAt, &task.UploadedFilesCount)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.Task{}, model.ErrTaskNotFound
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("get task: %w", err)
	}

	task.Status = model.TaskStatus(status)
	return task, nil
}

func (r *TaskRepository) List(ctx context.Context) ([]model.Task, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description, status, folder_path, created_at, uploaded_files_count
		 FROM tasks ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		var task model.Task
		var status string
		if err := rows.Scan(&task.ID, &task.Name, &task.Description, &status,
			&task.FolderPath, &task.CreatedAt, &task.UploadedFilesCount); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		task.Status = model.TaskStatus(status)
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

func (r *TaskRepository) UpdateStatus(ctx context.Context, id string, status model.TaskStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tasks SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrTaskNotFound
	}
	return nil
}

// IncrementFileCount bumps the cached counter atomically on the database
// side, so concurrent uploads never lose increments.
func (r *TaskRepository) IncrementFileCount(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tasks SET uploaded_files_count = uploaded_files_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment file count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrTaskNotFound
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrTaskNotFound
	}
	return nil
}
