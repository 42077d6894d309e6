// Package formats provides codecs for skeleton and animation assets: the
// binary SKEL format, the YAML rig format, and a glTF 2.0 skin importer.
package formats
