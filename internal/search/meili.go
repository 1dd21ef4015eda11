package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meilisearch/meilisearch-go"
)

// Meili adapts the Meilisearch client to the Engine interface.
type Meili struct {
	client *meilisearch.Client
}

func NewMeili(host, apiKey string) *Meili {
	return &Meili{
		client: meilisearch.NewClient(meilisearch.ClientConfig{
			Host:   host,
			APIKey: apiKey,
		}),
	}
}

// Health pings the engine.
func (m *Meili) Health(_ context.Context) error {
	if !m.client.IsHealthy() {
		return errors.New("meilisearch is not healthy")
	}
	return nil
}

func (m *Meili) EnsureIndex(ctx context.Context, index string) error {
	_, err := m.client.Index(index).FetchInfo()
	if err == nil {
		return nil
	}

	var merr *meilisearch.Error
	if !errors.As(err, &merr) || merr.MeilisearchApiError.Code != "index_not_found" {
		return fmt.Errorf("failed to fetch index info: %w", err)
	}

	task, err := m.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        index,
		PrimaryKey: "id",
	})
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return m.waitForTask(ctx, task.TaskUID)
}

func (m *Meili) ApplySettings(ctx context.Context, index string, searchable, filterable, sortable []string) error {
	task, err := m.client.Index(index).UpdateSettings(&meilisearch.Settings{
		SearchableAttributes: searchable,
		FilterableAttributes: filterable,
		SortableAttributes:   sortable,
	})
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return m.waitForTask(ctx, task.TaskUID)
}

func (m *Meili) AddDocuments(_ context.Context, index string, docs []Document) (int64, error) {
	task, err := m.client.Index(index).AddDocuments(docs, "id")
	if err != nil {
		return 0, err
	}
	return task.TaskUID, nil
}

func (m *Meili) WaitForTask(ctx context.Context, taskUID int64) error {
	return m.waitForTask(ctx, taskUID)
}

func (m *Meili) waitForTask(ctx context.Context, taskUID int64) error {
	task, err := m.client.WaitForTask(taskUID, meilisearch.WaitParams{
		Context:  ctx,
		Interval: 250 * time.Millisecond,
	})
	if err != nil {
		return err
	}
	if task.Status != meilisearch.TaskStatusSucceeded {
		return fmt.Errorf("task %d finished with status %q: %s", taskUID, task.Status, task.Error.Message)
	}
	return nil
}
