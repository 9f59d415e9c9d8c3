// Package entities provides the core types shared by both sides of the plugin
// boundary: value kinds, the closed type-tag vocabulary, typed values, handles,
// and the plugin descriptor with its capability schema.
//
// Nothing in this package knows how a plugin is loaded or invoked. Hosts and
// plugin SDKs exchange these types and serialize them to JSON only at the
// boundary.
package entities
