package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// mkdocs.yml files routinely carry application tags such as
// !!python/name:... that no Go type can decode, so the document is walked as
// a yaml.Node and only the pieces this package needs are decoded.

func documentRoot(doc *yaml.Node) *yaml.Node {
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return nil
		}
		return resolveAlias(doc.Content[0])
	}
	if doc.Kind == 0 {
		return nil
	}
	return resolveAlias(doc)
}

// mappingValue returns the value stored under key in a mapping node, or nil.
func mappingValue(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return resolveAlias(m.Content[i+1])
		}
	}
	return nil
}

// pluginOptions finds the resize-images entry in an mkdocs plugins node.
//
// Both spellings MkDocs accepts are understood:
//
//	plugins:                       plugins:
//	  - search                       search: {}
//	  - resize-images:               resize-images:
//	      size: [400, 300]             size: [400, 300]
//
// A bare "- resize-images" entry, a null value, or a missing entry all
// return nil, meaning every option keeps its default.
func pluginOptions(plugins *yaml.Node) (*yaml.Node, error) {
	var opts *yaml.Node

	switch plugins.Kind {
	case yaml.SequenceNode:
		for _, item := range plugins.Content {
			item = resolveAlias(item)
			if item.Kind == yaml.MappingNode {
				if v := mappingValue(item, PluginName); v != nil {
					opts = v
					break
				}
			}
		}
	case yaml.MappingNode:
		opts = mappingValue(plugins, PluginName)
	case yaml.ScalarNode:
		if plugins.Tag == "!!null" {
			return nil, nil
		}
		fallthrough
	default:
		return nil, fmt.Errorf("failed to parse plugins: expected a list or a mapping")
	}

	if opts == nil || (opts.Kind == yaml.ScalarNode && opts.Tag == "!!null") {
		return nil, nil
	}
	if opts.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("failed to parse %s options: expected a mapping", PluginName)
	}
	return opts, nil
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}
