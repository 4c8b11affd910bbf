// Package prompt assembles model prompts from embedded templates, local
// overrides, context documents and the classification taxonomy.
package prompt

import (
	"embed"
	"encoding/json"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"

	"github.com/sells-group/mailsentry/internal/model"
)

//go:embed templates
var defaults embed.FS

// Prompt is a provider-agnostic prompt: a system preamble and a user turn.
type Prompt struct {
	System string
	User   string
}

// Template names an instruction file under templates/instructions.
type Template string

// Instruction templates.
const (
	TemplateClassify    Template = "classify"
	TemplateEvent       Template = "extract_event"
	TemplatePerson      Template = "extract_person"
	TemplateTransaction Template = "extract_transaction"
	TemplateBill        Template = "extract_bill"
	TemplateSummary     Template = "render_summary"
	TemplateReceipt     Template = "render_receipt"
	TemplateBillNote    Template = "render_bill"
	TemplateHTML2Text   Template = "html2text"
)

var personaFor = map[Template]string{
	TemplateClassify:    "analyst",
	TemplateEvent:       "analyst",
	TemplatePerson:      "analyst",
	TemplateTransaction: "analyst",
	TemplateBill:        "analyst",
	TemplateSummary:     "writer",
	TemplateReceipt:     "writer",
	TemplateBillNote:    "writer",
	TemplateHTML2Text:   "converter",
}

var sentryTemplates = map[Template]bool{
	TemplateEvent:       true,
	TemplatePerson:      true,
	TemplateTransaction: true,
	TemplateBill:        true,
}

// Options controls where templates and context come from.
type Options struct {
	// OverrideDirectory mirrors the templates layout; any file present
	// there replaces the embedded default.
	OverrideDirectory  string
	ContextDirectories []string
	TaxonomyFile       string
}

// Section is a titled block of prompt text.
type Section struct {
	Title string
	Body  string
}

// Factory builds prompts for every stage. It is safe for concurrent use.
type Factory struct {
	personas     map[string]string
	instructions map[Template]string
	context      []Section
	taxonomy     *Taxonomy
}

// NewFactory loads all templates, context documents and the taxonomy.
func NewFactory(fsys afero.Fs, opts Options) (*Factory, error) {
	f := &Factory{
		personas:     make(map[string]string),
		instructions: make(map[Template]string),
	}

	for tmpl, persona := range personaFor {
		text, err := load(fsys, opts.OverrideDirectory, path.Join("instructions", string(tmpl)+".md"))
		if err != nil {
			return nil, err
		}
		f.instructions[tmpl] = text

		if _, ok := f.personas[persona]; ok {
			continue
		}
		text, err = load(fsys, opts.OverrideDirectory, path.Join("personas", persona+".md"))
		if err != nil {
			return nil, err
		}
		f.personas[persona] = text
	}

	for _, dir := range opts.ContextDirectories {
		sections, err := loadContext(fsys, dir)
		if err != nil {
			return nil, err
		}
		f.context = append(f.context, sections...)
	}

	raw, err := loadTaxonomy(fsys, opts)
	if err != nil {
		return nil, err
	}
	tax, err := ParseTaxonomy(raw)
	if err != nil {
		return nil, err
	}
	f.taxonomy = tax

	return f, nil
}

// Taxonomy returns the loaded classification taxonomy.
func (f *Factory) Taxonomy() *Taxonomy {
	return f.taxonomy
}

// Classify builds the classification prompt.
func (f *Factory) Classify(msg *model.Message) Prompt {
	system := f.system(TemplateClassify, Section{Title: "Taxonomy", Body: f.taxonomy.Render()})
	return Prompt{
		System: system,
		User: render(
			jsonSection("Headers", msg.Headers),
			Section{Title: "Body", Body: msg.Body()},
		),
	}
}

// Sentry builds the prompt for one of the extraction templates.
func (f *Factory) Sentry(tmpl Template, msg *model.Message, cls []model.Classification) (Prompt, error) {
	if !sentryTemplates[tmpl] {
		return Prompt{}, eris.Errorf("prompt: %q is not an extraction template", tmpl)
	}
	return Prompt{
		System: f.system(tmpl),
		User: render(
			jsonSection("Headers", msg.Headers),
			jsonSection("Classifications", cls),
			Section{Title: "Body", Body: msg.Body()},
		),
	}, nil
}

// Entities are the accumulated extraction results handed to the render
// prompts.
type Entities struct {
	Classifications []model.Classification
	Events          []model.Event
	People          []model.Person
	Transactions    []model.Transaction
	Bills           []model.Bill
}

// Summarize builds the summary note prompt.
func (f *Factory) Summarize(msg *model.Message, e Entities) Prompt {
	return f.renderPrompt(TemplateSummary, msg, e)
}

// Receipt builds the receipt note prompt; it includes transactions.
func (f *Factory) Receipt(msg *model.Message, e Entities) Prompt {
	return f.renderPrompt(TemplateReceipt, msg, e, jsonSection("Transactions", e.Transactions))
}

// Bill builds the bill note prompt; it includes bills.
func (f *Factory) Bill(msg *model.Message, e Entities) Prompt {
	return f.renderPrompt(TemplateBillNote, msg, e, jsonSection("Bills", e.Bills))
}

// HTML2Text builds the HTML conversion prompt.
func (f *Factory) HTML2Text(html string) Prompt {
	return Prompt{
		System: f.system(TemplateHTML2Text),
		User:   render(Section{Title: "HTML", Body: html}),
	}
}

func (f *Factory) renderPrompt(tmpl Template, msg *model.Message, e Entities, extra ...Section) Prompt {
	sections := []Section{
		jsonSection("Headers", msg.Headers),
		jsonSection("Classifications", e.Classifications),
		jsonSection("People", e.People),
		jsonSection("Events", e.Events),
	}
	sections = append(sections, extra...)
	sections = append(sections, Section{Title: "Body", Body: msg.Body()})
	return Prompt{System: f.system(tmpl), User: render(sections...)}
}

func (f *Factory) system(tmpl Template, extra ...Section) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(f.personas[personaFor[tmpl]]))
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(f.instructions[tmpl]))
	b.WriteString("\n")
	for _, s := range extra {
		writeSection(&b, s)
	}
	for _, s := range f.context {
		writeSection(&b, Section{Title: "Context: " + s.Title, Body: s.Body})
	}
	return b.String()
}

func render(sections ...Section) string {
	var b strings.Builder
	for i, s := range sections {
		if i > 0 {
			b.WriteString("\n")
		}
		writeSection(&b, s)
	}
	return strings.TrimLeft(b.String(), "\n")
}

func writeSection(b *strings.Builder, s Section) {
	b.WriteString("\n## ")
	b.WriteString(s.Title)
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(s.Body))
	b.WriteString("\n")
}

func jsonSection(title string, v any) Section {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		data = []byte("null")
	}
	return Section{Title: title, Body: "```json\n" + string(data) + "\n```"}
}

func load(fsys afero.Fs, overrideDir, rel string) (string, error) {
	if overrideDir != "" {
		p := filepath.Join(overrideDir, filepath.FromSlash(rel))
		ok, err := afero.Exists(fsys, p)
		if err != nil {
			return "", eris.Wrapf(err, "prompt: stat override %s", p)
		}
		if ok {
			data, err := afero.ReadFile(fsys, p)
			if err != nil {
				return "", eris.Wrapf(err, "prompt: read override %s", p)
			}
			return string(data), nil
		}
	}
	data, err := fs.ReadFile(defaults, path.Join("templates", rel))
	if err != nil {
		return "", eris.Wrapf(err, "prompt: read template %s", rel)
	}
	return string(data), nil
}

func loadContext(fsys afero.Fs, dir string) ([]Section, error) {
	infos, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, eris.Wrapf(err, "prompt: read context directory %s", dir)
	}
	var out []Section
	for _, info := range infos {
		if info.IsDir() || !strings.EqualFold(filepath.Ext(info.Name()), ".md") {
			continue
		}
		data, err := afero.ReadFile(fsys, filepath.Join(dir, info.Name()))
		if err != nil {
			return nil, eris.Wrapf(err, "prompt: read context %s", info.Name())
		}
		out = append(out, Section{
			Title: strings.TrimSuffix(info.Name(), filepath.Ext(info.Name())),
			Body:  string(data),
		})
	}
	return out, nil
}

func loadTaxonomy(fsys afero.Fs, opts Options) ([]byte, error) {
	if opts.TaxonomyFile != "" {
		data, err := afero.ReadFile(fsys, opts.TaxonomyFile)
		if err != nil {
			return nil, eris.Wrapf(err, "prompt: read taxonomy %s", opts.TaxonomyFile)
		}
		return data, nil
	}
	text, err := load(fsys, opts.OverrideDirectory, "taxonomy.yaml")
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}
