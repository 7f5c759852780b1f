// Package config turns declarative class/options documents into live object
// graphs. A document entry names a registered class and supplies named option
// values; each configurable type declares the options it accepts in an
// OptionSet, and the builder instantiates the class, binds the values, and
// resolves any file-typed option values that refer to remote locations.
package config
