package model

import (
	"math/bits"
	"strings"
	"time"
)

// Key identifies a field of Context. Keys combine as a bitset.
type Key uint32

const (
	KeyFile Key = 1 << iota
	KeyCreationTime
	KeyOutputPath
	KeyContextPath
	KeyDetailPath
	KeyHash
	KeyFilename
	KeyMessage
	KeyInclude
	KeyClassifications
	KeyEvents
	KeyPeople
	KeyTransactions
	KeyBills
	KeyArtifact
)

var keyNames = map[Key]string{
	KeyFile:            "file",
	KeyCreationTime:    "creationTime",
	KeyOutputPath:      "outputPath",
	KeyContextPath:     "contextPath",
	KeyDetailPath:      "detailPath",
	KeyHash:            "hash",
	KeyFilename:        "filename",
	KeyMessage:         "eml",
	KeyInclude:         "include",
	KeyClassifications: "classifications",
	KeyEvents:          "events",
	KeyPeople:          "people",
	KeyTransactions:    "transactions",
	KeyBills:           "bills",
	KeyArtifact:        "artifact",
}

// String lists the names of the keys in k.
func (k Key) String() string {
	if k == 0 {
		return "none"
	}
	var names []string
	for rest := k; rest != 0; {
		bit := Key(1) << bits.TrailingZeros32(uint32(rest))
		names = append(names, keyNames[bit])
		rest &^= bit
	}
	return strings.Join(names, "|")
}

// Artifact is a rendered markdown document and the path it lives at.
type Artifact struct {
	Kind    string `json:"kind"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Context is the record threaded through the stage graph for one message.
// Stages return a Context holding only the keys they produce; Merge folds
// that delta into the running record.
type Context struct {
	Keys    Key `json:"-"`
	Version int `json:"version"`

	File         string    `json:"file"`
	CreationTime time.Time `json:"creationTime"`
	OutputPath   string    `json:"outputPath"`
	ContextPath  string    `json:"contextPath"`
	DetailPath   string    `json:"detailPath"`
	Hash         string    `json:"hash"`
	Filename     string    `json:"filename"`
	Message      *Message  `json:"eml,omitempty"`

	Include       bool   `json:"include"`
	IncludeReason string `json:"includeReason,omitempty"`

	Classifications []Classification `json:"classifications"`
	Events          []Event          `json:"events"`
	People          []Person         `json:"people"`
	Transactions    []Transaction    `json:"transactions"`
	Bills           []Bill           `json:"bills"`

	Artifact *Artifact `json:"artifact,omitempty"`
}

// Has reports whether every key in k is defined. Empty slices count as
// defined.
func (c Context) Has(k Key) bool {
	return c.Keys&k == k
}

// Missing returns the keys of k that are not defined.
func (c Context) Missing(k Key) Key {
	return k &^ c.Keys
}

// Merge returns c with every field defined in delta copied over. Fields not
// defined in delta are left untouched, so keys are never cleared.
func (c Context) Merge(delta Context) Context {
	out := c
	d := delta.Keys
	if d&KeyFile != 0 {
		out.File = delta.File
	}
	if d&KeyCreationTime != 0 {
		out.CreationTime = delta.CreationTime
	}
	if d&KeyOutputPath != 0 {
		out.OutputPath = delta.OutputPath
	}
	if d&KeyContextPath != 0 {
		out.ContextPath = delta.ContextPath
	}
	if d&KeyDetailPath != 0 {
		out.DetailPath = delta.DetailPath
	}
	if d&KeyHash != 0 {
		out.Hash = delta.Hash
	}
	if d&KeyFilename != 0 {
		out.Filename = delta.Filename
	}
	if d&KeyMessage != 0 {
		out.Message = delta.Message
	}
	if d&KeyInclude != 0 {
		out.Include = delta.Include
		out.IncludeReason = delta.IncludeReason
	}
	if d&KeyClassifications != 0 {
		out.Classifications = delta.Classifications
	}
	if d&KeyEvents != 0 {
		out.Events = delta.Events
	}
	if d&KeyPeople != 0 {
		out.People = delta.People
	}
	if d&KeyTransactions != 0 {
		out.Transactions = delta.Transactions
	}
	if d&KeyBills != 0 {
		out.Bills = delta.Bills
	}
	if d&KeyArtifact != 0 {
		out.Artifact = delta.Artifact
	}
	out.Keys = c.Keys | d
	out.Version = max(c.Version, delta.Version) + 1
	return out
}
