package ximilar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Sternrassler/ximilar-client/pkg/batch"
	"github.com/Sternrassler/ximilar-client/pkg/cache"
	"github.com/Sternrassler/ximilar-client/pkg/endpoint"
	"github.com/Sternrassler/ximilar-client/pkg/pagination"
	"github.com/Sternrassler/ximilar-client/pkg/record"
)

const (
	labelPath         = "recognition/v2/label/"
	classifyPath      = "recognition/v2/classify/"
	trainingImagePath = "recognition/v2/training-image/"

	labelResource = "label"
)

// Label types.
const (
	LabelTag      = "tag"
	LabelCategory = "category"
)

// ErrTaskRequired is returned by Classify without a task id.
var ErrTaskRequired = errors.New("task id is required")

// Label is a label of the recognition application.
type Label struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Type            string          `json:"type"`
	Description     string          `json:"description"`
	OutputName      string          `json:"output_name"`
	ImagesCount     int             `json:"images_count"`
	TasksCount      int             `json:"tasks_count"`
	ObjectsCount    int             `json:"objects_count"`
	NegativeForTask json.RawMessage `json:"negative_for_task,omitempty"`
}

// normalize fills the defaults the service leaves out.
func (l *Label) normalize() {
	if l.OutputName == "" {
		l.OutputName = l.Name
	}
}

// LabelOptions holds the optional properties of a new label.
type LabelOptions struct {
	Description string
	OutputName  string
}

// Recognition wraps access to the recognition application.
type Recognition struct {
	app *App
}

// NewTag creates a label of type tag.
func (r *Recognition) NewTag(ctx context.Context, name string, opts LabelOptions) (*Label, error) {
	return r.newLabel(ctx, name, LabelTag, opts)
}

// NewCategory creates a label of type category.
func (r *Recognition) NewCategory(ctx context.Context, name string, opts LabelOptions) (*Label, error) {
	return r.newLabel(ctx, name, LabelCategory, opts)
}

func (r *Recognition) newLabel(ctx context.Context, name, labelType string, opts LabelOptions) (*Label, error) {
	args := endpoint.Args{"name": name, "type": labelType}
	if opts.Description != "" {
		args["description"] = opts.Description
	}
	if opts.OutputName != "" {
		args["output_name"] = opts.OutputName
	}

	raw, err := r.app.ep.Post(ctx, labelPath, args)
	if err != nil {
		return nil, err
	}

	var label Label
	if err := decodeObject(raw, &label); err != nil {
		return nil, fmt.Errorf("decode label: %w", err)
	}
	label.normalize()

	r.store(ctx, &label)
	return &label, nil
}

// Label returns the label with the given id, from the cache when possible.
func (r *Recognition) Label(ctx context.Context, id string) (*Label, error) {
	key := r.app.objectKey(labelResource, id)

	var label Label
	_, err := cache.GetJSON(ctx, r.app.cache, key, &label)
	if err == nil {
		r.app.logger.Debug().Str("key", key.String()).Msg("Label cache hit")
		return &label, nil
	}
	r.app.logCacheError(err, "get")

	raw, err := r.app.ep.Get(ctx, labelPath+id+"/", nil)
	if err != nil {
		return nil, err
	}
	if err := decodeObject(raw, &label); err != nil {
		return nil, fmt.Errorf("decode label %s: %w", id, err)
	}
	if label.ID == "" {
		label.ID = id
	}
	label.normalize()

	r.store(ctx, &label)
	return &label, nil
}

// Labels returns an iterator over all labels of the workspace.
func (r *Recognition) Labels(ctx context.Context) *LabelIterator {
	return &LabelIterator{it: pagination.NewIterator(ctx, r.app.ep, labelPath, nil, r.app.pageOptions()...)}
}

// AllLabels returns every label of the workspace.
func (r *Recognition) AllLabels(ctx context.Context) ([]Label, error) {
	labels, err := pagination.Collect[Label](ctx, r.app.ep, labelPath, nil, r.app.pageOptions()...)
	if err != nil {
		return nil, err
	}
	for i := range labels {
		labels[i].normalize()
	}
	return labels, nil
}

// WipeLabel deletes the label and every image associated with it.
func (r *Recognition) WipeLabel(ctx context.Context, id string) error {
	r.invalidate(ctx, id)
	_, err := r.app.ep.Delete(ctx, labelPath+id+"/wipe", nil)
	return err
}

// DeleteLabel deletes the label. Images stay.
func (r *Recognition) DeleteLabel(ctx context.Context, id string) error {
	r.invalidate(ctx, id)
	_, err := r.app.ep.Delete(ctx, labelPath+id, nil)
	return err
}

func (r *Recognition) store(ctx context.Context, label *Label) {
	if label.ID == "" {
		return
	}
	if err := cache.SetJSON(ctx, r.app.cache, r.app.objectKey(labelResource, label.ID), label, r.app.ttl); err != nil {
		r.app.logCacheError(err, "set")
	}
}

func (r *Recognition) invalidate(ctx context.Context, id string) {
	if err := r.app.cache.Delete(ctx, r.app.objectKey(labelResource, id)); err != nil {
		r.app.logCacheError(err, "delete")
	}
}

// Classify sends the records to the task in chunks of cfg.BatchSize and
// returns one reply per chunk, in record order.
func (r *Recognition) Classify(ctx context.Context, taskID string, records []record.Record, cfg batch.Config) ([]json.RawMessage, error) {
	if taskID == "" {
		return nil, ErrTaskRequired
	}
	if err := validate(records); err != nil {
		return nil, err
	}

	return batch.Process(ctx, records, func(ctx context.Context, chunk []record.Record) (json.RawMessage, error) {
		encoded, err := r.app.encoder.EncodeAll(ctx, chunk)
		if err != nil {
			return nil, err
		}
		return r.app.ep.Post(ctx, classifyPath, endpoint.Args{
			record.KeyRecords: encoded,
			"task_id":         taskID,
		})
	}, cfg)
}

// UploadTrainingImages uploads every record as a training image. URL sources
// are downloaded first. Record fields such as "labels" or "noresize" are sent
// along, and the cached labels named in "labels" are dropped before each
// upload. The replies are returned in record order.
func (r *Recognition) UploadTrainingImages(ctx context.Context, records []record.Record, cfg batch.Config) ([]json.RawMessage, error) {
	if err := validate(records); err != nil {
		return nil, err
	}

	if cfg.Tally == nil {
		cfg.Tally = tallyUploads
	}

	chunks, err := batch.Process(ctx, records, func(ctx context.Context, chunk []record.Record) ([]json.RawMessage, error) {
		replies := make([]json.RawMessage, 0, len(chunk))
		for _, rec := range chunk {
			encoded, err := r.app.encoder.Inline(ctx, rec)
			if err != nil {
				return replies, err
			}
			for _, id := range labelIDs(rec.Fields) {
				r.invalidate(ctx, id)
			}

			args := endpoint.Args{}
			for k, v := range encoded {
				if k == record.KeyBase64 {
					args["base64"] = v
					continue
				}
				args[k] = v
			}

			reply, err := r.app.ep.Post(ctx, trainingImagePath, args)
			if err != nil {
				return replies, err
			}
			replies = append(replies, reply)
		}
		return replies, nil
	}, cfg)

	var out []json.RawMessage
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out, err
}

// tallyUploads counts an upload as failed when the reply has no image id.
func tallyUploads(result any) batch.Stats {
	replies, _ := result.([]json.RawMessage)
	var stats batch.Stats
	for _, raw := range replies {
		var image struct {
			ID string `json:"id"`
		}
		if err := jsonAPI.Unmarshal(raw, &image); err != nil || image.ID == "" {
			stats.Failed++
			continue
		}
		stats.Succeeded++
	}
	return stats
}

// labelIDs returns the label ids of a record's "labels" field.
func labelIDs(fields map[string]any) []string {
	switch labels := fields["labels"].(type) {
	case []string:
		return labels
	case []any:
		ids := make([]string, 0, len(labels))
		for _, l := range labels {
			if id, ok := l.(string); ok {
				ids = append(ids, id)
			}
		}
		return ids
	}
	return nil
}

func validate(records []record.Record) error {
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

// LabelIterator walks the labels of a workspace lazily.
type LabelIterator struct {
	it *pagination.Iterator
}

// Next returns the next label. Its second return value is iterator.Done if
// there are no more labels.
func (it *LabelIterator) Next() (*Label, error) {
	raw, err := it.it.Next()
	if err != nil {
		return nil, err
	}
	var label Label
	if err := jsonAPI.Unmarshal(raw, &label); err != nil {
		return nil, fmt.Errorf("decode label: %w", err)
	}
	label.normalize()
	return &label, nil
}

// Count returns the number of labels reported by the service so far.
func (it *LabelIterator) Count() int {
	return it.it.Count()
}
