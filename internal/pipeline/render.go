package pipeline

import (
	"context"
	"encoding/json"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mailsentry/internal/graph"
	"github.com/sells-group/mailsentry/internal/layout"
	"github.com/sells-group/mailsentry/internal/llm"
	"github.com/sells-group/mailsentry/internal/model"
	"github.com/sells-group/mailsentry/internal/prompt"
	"github.com/sells-group/mailsentry/internal/schema"
)

type billNote struct {
	Bill string `json:"bill" jsonschema:"the markdown bill note"`
}

type receiptNote struct {
	Receipt string `json:"receipt" jsonschema:"the markdown receipt note"`
}

type summaryNote struct {
	Summary string `json:"summary" jsonschema:"the markdown summary"`
}

var (
	billNoteSchema    = schema.MustFor[billNote]("bill")
	receiptNoteSchema = schema.MustFor[receiptNote]("receipt")
	summaryNoteSchema = schema.MustFor[summaryNote]("summary")
)

// render writes the terminal markdown artifact for one route.
type render struct {
	s      *stages
	kind   string
	subdir string

	// entities is the extra key this route needs beyond the common ones.
	entities model.Key
	schema   *schema.Schema
	build    func(f *prompt.Factory, msg *model.Message, e prompt.Entities) prompt.Prompt
}

var renderRequired = []model.Key{
	model.KeyMessage, model.KeyEvents, model.KeyPeople, model.KeyClassifications,
	model.KeyOutputPath, model.KeyFilename,
}

func newRenders(s *stages) map[string]*render {
	return map[string]*render{
		NodeBill: {
			s: s, kind: "bill", subdir: "bills",
			entities: model.KeyBills, schema: billNoteSchema, build: (*prompt.Factory).Bill,
		},
		NodeReceiptRender: {
			s: s, kind: "receipt", subdir: "receipts",
			entities: model.KeyTransactions, schema: receiptNoteSchema, build: (*prompt.Factory).Receipt,
		},
		NodeSummarize: {
			s: s, kind: "summary",
			schema: summaryNoteSchema, build: (*prompt.Factory).Summarize,
		},
	}
}

func (r *render) Verify(in model.Context) graph.Verification {
	keys := renderRequired
	if r.entities != 0 {
		keys = append(append([]model.Key(nil), renderRequired...), r.entities)
	}
	return requireKeys(in, keys...)
}

func (r *render) path(in model.Context) string {
	return filepath.Join(in.OutputPath, r.subdir, layout.ArtifactName(in.Filename, r.kind)+".md")
}

// Execute reads back an existing artifact or renders and writes a new one.
func (r *render) Execute(ctx context.Context, in model.Context) (model.Context, error) {
	path := r.path(in)
	log := zap.L().With(zap.String("file", in.File), zap.String("artifact", path))

	if err := r.s.Storage.CreateDirectory(filepath.Dir(path)); err != nil {
		return model.Context{}, err
	}

	ok, err := r.s.Storage.Exists(path)
	if err != nil {
		return model.Context{}, err
	}
	if ok {
		data, err := r.s.Storage.ReadFile(path)
		if err != nil {
			return model.Context{}, err
		}
		log.Debug("pipeline: artifact exists")
		return r.artifact(path, string(data)), nil
	}

	raw, err := r.s.Completer.Complete(ctx, llm.Request{
		Name:  r.kind,
		Model: r.s.opts.Model,
		Prompt: r.build(r.s.Prompts, in.Message, prompt.Entities{
			Classifications: in.Classifications,
			Events:          in.Events,
			People:          in.People,
			Transactions:    in.Transactions,
			Bills:           in.Bills,
		}),
		Schema: r.schema,
	})
	if err != nil {
		return model.Context{}, err
	}

	var fields map[string]string
	if err := json.Unmarshal(raw, &fields); err != nil {
		return model.Context{}, eris.Wrapf(err, "pipeline: decode %s", r.kind)
	}
	content := fields[r.kind]
	if err := r.s.Storage.WriteFile(path, []byte(content)); err != nil {
		return model.Context{}, eris.Wrapf(err, "pipeline: write %s", r.kind)
	}
	log.Info("pipeline: artifact written")
	return r.artifact(path, content), nil
}

func (r *render) artifact(path, content string) model.Context {
	return model.Context{
		Keys:     model.KeyArtifact,
		Artifact: &model.Artifact{Kind: r.kind, Path: path, Content: content},
	}
}
