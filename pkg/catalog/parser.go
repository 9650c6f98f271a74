package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/bootcoord/pkg/boot"
)

// Definition is the on-disk form of a Boot Resource.
type Definition struct {
	// Address is the key the resource is resolved by.
	Address string `json:"address" yaml:"address" validate:"required,max=128"`

	// Name names the resource and its container.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Templates are instantiated in order. Null entries are allowed.
	Templates []*boot.Template `json:"templates" yaml:"templates" validate:"dive"`
}

// Resource builds an inactive Boot Resource from the definition.
func (d *Definition) Resource() *boot.Resource {
	return boot.NewResource(d.Name, d.Templates)
}

// Problem is a single definition error with its source position when known.
type Problem struct {
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

func (p Problem) String() string {
	var b strings.Builder
	if p.File != "" {
		b.WriteString(p.File)
		if p.Line > 0 {
			fmt.Fprintf(&b, ":%d:%d", p.Line, p.Column)
		}
		b.WriteString(": ")
	}
	if p.Path != "" {
		b.WriteString(p.Path)
		b.WriteString(": ")
	}
	b.WriteString(p.Message)
	return b.String()
}

// ParseError collects every problem found in one definition file.
type ParseError struct {
	File     string
	Problems []Problem
}

func (e *ParseError) Error() string {
	if len(e.Problems) == 1 {
		return e.Problems[0].String()
	}
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.String()
	}
	return fmt.Sprintf("%s: %d problems: %s", e.File, len(e.Problems), strings.Join(msgs, "; "))
}

const definitionSchema = `
#Template: {
	name:        string & !=""
	kind?:       string
	properties?: {...}
}

#BootResource: {
	address:   string & =~"^[A-Za-z0-9_.-]+$"
	name:      string & !=""
	templates: [...(null | #Template)] | *[]
}
`

// Parser reads and validates definition files.
type Parser struct {
	ctx       *cue.Context
	schema    cue.Value
	validator *validator.Validate
}

// NewParser creates a parser with the built-in definition schema.
func NewParser() *Parser {
	ctx := cuecontext.New()
	schema := ctx.CompileString(definitionSchema, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#BootResource"))
	return &Parser{
		ctx:       ctx,
		schema:    schema,
		validator: validator.New(),
	}
}

// IsDefinitionFile reports whether path has a definition file extension.
func IsDefinitionFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue", ".yaml", ".yml":
		return true
	}
	return false
}

// ParseFile reads a definition from path. The format follows the file extension.
func (p *Parser) ParseFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}
	return p.Parse(path, data)
}

// Parse decodes a definition. name is used for the format and error positions.
func (p *Parser) Parse(name string, data []byte) (*Definition, error) {
	var (
		def *Definition
		err error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".cue":
		def, err = p.parseCUE(name, data)
	case ".yaml", ".yml":
		def, err = p.parseYAML(name, data)
	default:
		return nil, &ParseError{File: name, Problems: []Problem{{File: name, Message: "unsupported definition format"}}}
	}
	if err != nil {
		return nil, err
	}

	if err := p.validate(name, def); err != nil {
		return nil, err
	}
	return def, nil
}

func (p *Parser) parseCUE(name string, data []byte) (*Definition, error) {
	val := p.ctx.CompileBytes(data, cue.Filename(name))
	if err := val.Err(); err != nil {
		return nil, &ParseError{File: name, Problems: convertCUEErrors(name, err)}
	}
	return p.decode(name, val)
}

func (p *Parser) parseYAML(name string, data []byte) (*Definition, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{File: name, Problems: []Problem{{File: name, Message: err.Error()}}}
	}
	if raw == nil {
		return nil, &ParseError{File: name, Problems: []Problem{{File: name, Message: "empty definition"}}}
	}

	val := p.ctx.Encode(raw)
	if err := val.Err(); err != nil {
		return nil, &ParseError{File: name, Problems: convertCUEErrors(name, err)}
	}
	return p.decode(name, val)
}

// decode unifies val with the schema and decodes the result.
func (p *Parser) decode(name string, val cue.Value) (*Definition, error) {
	unified := p.schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, &ParseError{File: name, Problems: convertCUEErrors(name, err)}
	}

	var def Definition
	if err := unified.Decode(&def); err != nil {
		return nil, &ParseError{File: name, Problems: []Problem{{File: name, Message: fmt.Sprintf("failed to decode definition: %v", err)}}}
	}
	return &def, nil
}

func (p *Parser) validate(name string, def *Definition) error {
	err := p.validator.Struct(def)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return &ParseError{File: name, Problems: []Problem{{File: name, Message: err.Error()}}}
	}

	problems := make([]Problem, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, Problem{
			File:    name,
			Path:    fe.Namespace(),
			Message: fmt.Sprintf("failed on %q", fe.Tag()),
		})
	}
	return &ParseError{File: name, Problems: problems}
}

// convertCUEErrors flattens a CUE error into problems with positions.
func convertCUEErrors(file string, err error) []Problem {
	var problems []Problem
	for _, e := range cueerrors.Errors(err) {
		p := Problem{File: file, Message: cueerrors.Details(e, nil)}
		if pos := cueerrors.Positions(e); len(pos) > 0 {
			if f := pos[0].Filename(); f != "" {
				p.File = f
			}
			p.Line = pos[0].Line()
			p.Column = pos[0].Column()
		}
		if path := e.Path(); len(path) > 0 {
			p.Path = strings.Join(path, ".")
		}
		problems = append(problems, p)
	}
	if len(problems) == 0 {
		problems = append(problems, Problem{File: file, Message: err.Error()})
	}
	return problems
}
