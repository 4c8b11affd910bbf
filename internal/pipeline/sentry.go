package pipeline

import (
	"context"

	"github.com/sells-group/mailsentry/internal/graph"
	"github.com/sells-group/mailsentry/internal/llm"
	"github.com/sells-group/mailsentry/internal/model"
	"github.com/sells-group/mailsentry/internal/prompt"
	"github.com/sells-group/mailsentry/internal/schema"
)

// SentryKind names one of the concurrent extractors.
type SentryKind string

// Sentry kinds.
const (
	SentryEvent   SentryKind = "event"
	SentryPerson  SentryKind = "person"
	SentryReceipt SentryKind = "receipt"
	SentryBill    SentryKind = "bill"
)

type eventsResponse struct {
	Events []model.Event `json:"events"`
}

type peopleResponse struct {
	People []model.Person `json:"people"`
}

type transactionsResponse struct {
	Transactions []model.Transaction `json:"transactions"`
}

type billsResponse struct {
	Bills []model.Bill `json:"bills"`
}

var (
	eventsSchema = schema.MustFor[eventsResponse]("events",
		schema.Enum("events.[].eventType", model.EventTypes...),
		schema.Enum("events.[].dateType", model.EventDateTypes...),
	)
	peopleSchema = schema.MustFor[peopleResponse]("people",
		schema.Enum("people.[].category", model.PersonCategories...),
	)
	transactionsSchema = schema.MustFor[transactionsResponse]("transactions",
		schema.Enum("transactions.[].type", model.TransactionTypes...),
		schema.Enum("transactions.[].category", model.TransactionCats...),
		schema.Enum("transactions.[].status", model.TransactionStatus...),
		schema.Enum("transactions.[].merchant_type", model.MerchantTypes...),
	)
	billsSchema = schema.MustFor[billsResponse]("bills",
		schema.Enum("bills.[].kind", model.BillKinds...),
		schema.Enum("bills.[].status", model.BillStatus...),
	)
)

// sentry is the shared extractor: it reads the message and its
// classifications and contributes one entity list under key.
type sentry[T any] struct {
	s        *stages
	kind     SentryKind
	key      model.Key
	template prompt.Template
	schema   *schema.Schema

	// delta places the decoded entities in a Context; Keys is set from key.
	delta func(T) model.Context
}

func (p *sentry[T]) Verify(in model.Context) graph.Verification {
	return requireKeys(in, model.KeyMessage, model.KeyClassifications, model.KeyDetailPath, model.KeyFilename)
}

func (p *sentry[T]) Execute(ctx context.Context, in model.Context) (model.Context, error) {
	pr, err := p.s.Prompts.Sentry(p.template, in.Message, in.Classifications)
	if err != nil {
		return model.Context{}, err
	}
	resp, err := completeCached[T](ctx, p.s, responsePath(in, string(p.kind)), llm.Request{
		Name:   string(p.kind),
		Model:  p.s.opts.ClassifyModel,
		Prompt: pr,
		Schema: p.schema,
	})
	if err != nil {
		return model.Context{}, err
	}
	d := p.delta(resp)
	d.Keys = p.key
	return d, nil
}

// sentryTable lists the extractors in fan-out order.
var sentryTable = []struct {
	kind  SentryKind
	node  string
	build func(s *stages) graph.Phase[model.Context]
}{
	{SentryEvent, NodeEvent, func(s *stages) graph.Phase[model.Context] {
		return &sentry[eventsResponse]{s: s, kind: SentryEvent, key: model.KeyEvents, template: prompt.TemplateEvent, schema: eventsSchema,
			delta: func(r eventsResponse) model.Context {
				return model.Context{Events: orEmpty(r.Events)}
			}}
	}},
	{SentryPerson, NodePerson, func(s *stages) graph.Phase[model.Context] {
		return &sentry[peopleResponse]{s: s, kind: SentryPerson, key: model.KeyPeople, template: prompt.TemplatePerson, schema: peopleSchema,
			delta: func(r peopleResponse) model.Context {
				return model.Context{People: orEmpty(r.People)}
			}}
	}},
	{SentryReceipt, NodeReceipt, func(s *stages) graph.Phase[model.Context] {
		return &sentry[transactionsResponse]{s: s, kind: SentryReceipt, key: model.KeyTransactions, template: prompt.TemplateTransaction, schema: transactionsSchema,
			delta: func(r transactionsResponse) model.Context {
				return model.Context{Transactions: orEmpty(r.Transactions)}
			}}
	}},
	{SentryBill, NodeBillSentry, func(s *stages) graph.Phase[model.Context] {
		return &sentry[billsResponse]{s: s, kind: SentryBill, key: model.KeyBills, template: prompt.TemplateBill, schema: billsSchema,
			delta: func(r billsResponse) model.Context {
				return model.Context{Bills: orEmpty(r.Bills)}
			}}
	}},
}
