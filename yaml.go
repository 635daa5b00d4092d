package bgm

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"

	"gopkg.in/yaml.v3"
)

// A CommandSeq is written as a list of commands. Each command is a mapping
// with a "type" key naming it, e.g. {type: note, pitch: 140, velocity: 100,
// length: 48}. Event ids are not stored.

func (s CommandSeq) MarshalYAML() (interface{}, error) {
	nodes := make([]*yaml.Node, 0, len(s.events))
	for _, e := range s.events {
		var n yaml.Node
		if err := n.Encode(e.Command); err != nil {
			return nil, err
		}
		n.Content = append([]*yaml.Node{
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: "type"},
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Command.commandName()},
		}, n.Content...)
		n.Style = yaml.FlowStyle
		nodes = append(nodes, &n)
	}
	return &yaml.Node{Kind: yaml.SequenceNode, Content: nodes}, nil
}

func (s *CommandSeq) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: commands must be a list", value.Line)
	}
	cmds := make([]Command, 0, len(value.Content))
	for _, item := range value.Content {
		if item.Kind != yaml.MappingNode {
			return fmt.Errorf("line %d: command must be a mapping", item.Line)
		}
		var name string
		fields := *item
		fields.Content = nil
		for i := 0; i+1 < len(item.Content); i += 2 {
			if item.Content[i].Value == "type" {
				name = item.Content[i+1].Value
				continue
			}
			fields.Content = append(fields.Content, item.Content[i], item.Content[i+1])
		}
		cmd, err := newCommand(name)
		if err != nil {
			return fmt.Errorf("line %d: %w", item.Line, err)
		}
		if err := fields.Decode(cmd.Interface()); err != nil {
			return err
		}
		cmds = append(cmds, cmd.Elem().Interface().(Command))
	}
	s.events = newEvents(cmds)
	return nil
}

func (s CommandSeq) MarshalJSON() ([]byte, error) {
	items := make([]map[string]interface{}, 0, len(s.events))
	for _, e := range s.events {
		b, err := json.Marshal(e.Command)
		if err != nil {
			return nil, err
		}
		item := map[string]interface{}{}
		if err := json.Unmarshal(b, &item); err != nil {
			return nil, err
		}
		item["type"] = e.Command.commandName()
		items = append(items, item)
	}
	return json.Marshal(items)
}

func (s *CommandSeq) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	cmds := make([]Command, 0, len(items))
	for i, raw := range items {
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return err
		}
		cmd, err := newCommand(head.Type)
		if err != nil {
			return fmt.Errorf("command %d: %w", i, err)
		}
		if err := json.Unmarshal(raw, cmd.Interface()); err != nil {
			return err
		}
		cmds = append(cmds, cmd.Elem().Interface().(Command))
	}
	s.events = newEvents(cmds)
	return nil
}

// newCommand returns a pointer to a zero command of the given name.
func newCommand(name string) (reflect.Value, error) {
	t, ok := commandTypes[name]
	if !ok {
		return reflect.Value{}, fmt.Errorf("unknown command type %q", name)
	}
	return reflect.New(t), nil
}

// unknownText is Unknown with its bytes as a hex string.
type unknownText struct {
	Start int64
	End   int64
	Data  string
}

func (u Unknown) text() unknownText {
	return unknownText{Start: u.Start, End: u.End, Data: hex.EncodeToString(u.Data)}
}

func (t unknownText) unknown() (Unknown, error) {
	data, err := hex.DecodeString(t.Data)
	if err != nil {
		return Unknown{}, fmt.Errorf("unknown region %#x: %w", t.Start, err)
	}
	return Unknown{Start: t.Start, End: t.End, Data: data}, nil
}

func (u Unknown) MarshalYAML() (interface{}, error) {
	return u.text(), nil
}

func (u *Unknown) UnmarshalYAML(value *yaml.Node) error {
	var t unknownText
	if err := value.Decode(&t); err != nil {
		return err
	}
	var err error
	*u, err = t.unknown()
	return err
}

func (u Unknown) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.text())
}

func (u *Unknown) UnmarshalJSON(data []byte) error {
	var t unknownText
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	var err error
	*u, err = t.unknown()
	return err
}

// ToYAML returns the song as a YAML document.
func ToYAML(b *Bgm) ([]byte, error) {
	return yaml.Marshal(b)
}

// FromYAML parses a YAML document written by ToYAML.
func FromYAML(data []byte) (*Bgm, error) {
	b := New()
	b.Name = ""
	if err := yaml.Unmarshal(data, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ToJSON returns the song as an indented JSON document.
func ToJSON(b *Bgm) ([]byte, error) {
	return json.MarshalIndent(b, "", "  ")
}

// FromJSON validates data against the interchange schema and parses it.
func FromJSON(data []byte) (*Bgm, error) {
	if err := ValidateJSON(data); err != nil {
		return nil, err
	}
	b := New()
	b.Name = ""
	if err := json.Unmarshal(data, b); err != nil {
		return nil, err
	}
	return b, nil
}
