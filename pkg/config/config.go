package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/user"
	"path"
	"reflect"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

const (
	configDir       string = "gouge"
	configDirHidden string = ".gouge"
	configFile      string = "config.yml"
)

// Config defines all configuration options available to be set through the config file.
type Config struct {
	// Commands aliases.
	Aliases map[string][]string `yaml:"aliases"`

	// CommandPath is a directory of Starlark command scripts loaded when the
	// terminal starts.
	CommandPath string `yaml:"command-path"`

	// Colors used by pjson for object keys, strings and numbers (3/4 bit
	// color codes as defined here:
	// https://en.wikipedia.org/wiki/ANSI_escape_code#Colors)
	JSONKeyColor    int `yaml:"json-key-color"`
	JSONStringColor int `yaml:"json-string-color"`
	JSONNumberColor int `yaml:"json-number-color"`

	// MaxStringLen is the maximum string length that the commands pjson,
	// print and whatis should read.
	MaxStringLen *int `yaml:"max-string-len,omitempty"`
	// MaxArrayValues is the maximum number of array items that the commands
	// pjson, print and whatis should read.
	MaxArrayValues *int `yaml:"max-array-values,omitempty"`
	// MaxVariableRecurse is the maximum depth to which nested values are
	// loaded.
	MaxVariableRecurse *int `yaml:"max-variable-recurse,omitempty"`

	// Indent is the indentation string used by pjson.
	Indent string `yaml:"indent"`
	// SortKeys makes pjson sort object keys unless overridden on the command
	// line.
	SortKeys bool `yaml:"sort-keys"`

	// ShortenTypes makes print and whatis reduce package paths in type
	// names to the package name alone.
	ShortenTypes bool `yaml:"short-types"`

	// JSONLog formats every log entry as one JSON document.
	JSONLog bool `yaml:"json-log"`
}

// LoadConfig attempts to populate a Config object from the config.yml file.
func LoadConfig() *Config {
	err := createConfigPath()
	if err != nil {
		fmt.Printf("Could not create config directory: %v.", err)
		return &Config{}
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		fmt.Printf("Unable to get config file path: %v.", err)
		return &Config{}
	}

	f, err := os.Open(fullConfigFile)
	if err != nil {
		f, err = createDefaultConfig(fullConfigFile)
		if err != nil {
			fmt.Printf("Error creating default config file: %v", err)
			return &Config{}
		}
	}
	defer func() {
		err := f.Close()
		if err != nil {
			fmt.Printf("Closing config file failed: %v.", err)
		}
	}()

	data, err := os.ReadFile(fullConfigFile)
	if err != nil {
		fmt.Printf("Unable to read config data: %v.", err)
		return &Config{}
	}

	var c Config
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		fmt.Printf("Unable to decode config file: %v.", err)
		return &Config{}
	}

	return &c
}

// SaveConfig will marshal and save the config struct
// to disk.
func SaveConfig(conf *Config) error {
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}

	f, err := os.Create(fullConfigFile)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(out)
	return err
}

func createDefaultConfig(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create config file: %v", err)
	}
	err = writeDefaultConfig(f)
	if err != nil {
		return nil, fmt.Errorf("unable to write default configuration: %v", err)
	}
	return f, nil
}

func writeDefaultConfig(f *os.File) error {
	_, err := f.WriteString(
		`# Configuration file for the gouge inspection terminal.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.

# Provided aliases will be added to the default aliases for a given command.
aliases:
  # command: ["alias1", "alias2"]

# Uncomment the following line to load every *.star command script found in
# the given directory when the terminal starts.
# command-path: /home/user/.config/gouge/commands

# Uncomment the following lines and set your preferred ANSI foreground colors
# for the pjson command (if unset, defaults are 34 for keys, 32 for strings
# and 36 for numbers). See https://en.wikipedia.org/wiki/ANSI_escape_code#3/4_bit
# json-key-color: 34
# json-string-color: 32
# json-number-color: 36

# Maximum loaded string length.
# max-string-len: 64

# Maximum number of elements loaded from an array.
# max-array-values: 64

# Maximum depth to which nested values are loaded.
# max-variable-recurse: 1

# Indentation string used by pjson.
# indent: "    "

# Uncomment the following line to make pjson sort object keys by default.
# sort-keys: true

# Uncomment the following line to make print and whatis display short type
# names, with package paths reduced to the package name.
# short-types: true

# Uncomment the following line to format log entries as JSON documents.
# json-log: true
`)
	return err
}

// createConfigPath creates the directory structure at which all config files are saved.
func createConfigPath() error {
	path, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0700)
}

// GetConfigFilePath gets the full path to the given config file name.
func GetConfigFilePath(file string) (string, error) {
	if configPath := os.Getenv("XDG_CONFIG_HOME"); configPath != "" {
		return path.Join(configPath, configDir, file), nil
	}

	userHomeDir := getUserHomeDir()

	if runtime.GOOS == "linux" {
		return path.Join(userHomeDir, ".config", configDir, file), nil
	}
	return path.Join(userHomeDir, configDirHidden, file), nil
}

func getUserHomeDir() string {
	userHomeDir := "."
	usr, err := user.Current()
	if err == nil {
		userHomeDir = usr.HomeDir
	}
	return userHomeDir
}

type configIterator struct {
	theStruct reflect.Value
	curField  int
	tag       string
}

// IterateConfiguration returns an iterator over the fields of conf, a pointer
// to a configuration struct. Field names are read from the given struct tag.
func IterateConfiguration(conf interface{}, tag string) *configIterator {
	return &configIterator{reflect.ValueOf(conf).Elem(), -1, tag}
}

func (it *configIterator) Next() bool {
	it.curField++
	return it.curField < it.theStruct.NumField()
}

func (it *configIterator) Field() (name string, field reflect.Value) {
	field = it.theStruct.Field(it.curField)
	name = it.theStruct.Type().Field(it.curField).Tag.Get(it.tag)
	if comma := strings.Index(name, ","); comma >= 0 {
		name = name[:comma]
	}
	return
}

// ConfigureList writes to w the value of every field of config that carries
// the given struct tag.
func ConfigureList(w io.Writer, config interface{}, tag string) {
	it := IterateConfiguration(config, tag)
	for it.Next() {
		fieldName, field := it.Field()
		if fieldName == "" {
			continue
		}
		writeField(w, field, fieldName)
	}
}

// ConfigureListByName returns the value of the field of sargs tagged with
// cfgname, formatted as ConfigureList would.
func ConfigureListByName(sargs interface{}, cfgname, tag string) string {
	if cfgname == "" {
		return ""
	}
	buf := &bytes.Buffer{}
	it := IterateConfiguration(sargs, tag)
	for it.Next() {
		fieldName, field := it.Field()
		if fieldName == cfgname {
			writeField(buf, field, fieldName)
		}
	}
	return buf.String()
}

// ConfigureSetSimple writes rest to a field of a simple type (int, bool or
// string, possibly behind a pointer). The string "default" resets pointer
// fields to nil.
func ConfigureSetSimple(rest, cfgname string, field reflect.Value) error {
	simpleArg := func(typ reflect.Type) (reflect.Value, error) {
		switch typ.Kind() {
		case reflect.Int:
			n, err := strconv.Atoi(rest)
			if err != nil {
				return reflect.ValueOf(nil), fmt.Errorf("argument to %q must be a number", cfgname)
			}
			if n < 0 {
				return reflect.ValueOf(nil), fmt.Errorf("argument to %q must be a number greater than zero", cfgname)
			}
			return reflect.ValueOf(&n), nil
		case reflect.Bool:
			v := rest == "true"
			return reflect.ValueOf(&v), nil
		case reflect.String:
			unquoted, err := strconv.Unquote(rest)
			if err == nil {
				rest = unquoted
			}
			return reflect.ValueOf(&rest), nil
		default:
			return reflect.ValueOf(nil), fmt.Errorf("unsupported type for configuration %q", cfgname)
		}
	}
	if field.Kind() == reflect.Ptr {
		if rest == "default" {
			field.Set(reflect.Zero(field.Type()))
			return nil
		}
		simpleVal, err := simpleArg(field.Type().Elem())
		if err != nil {
			return err
		}
		field.Set(simpleVal)
	} else {
		simpleVal, err := simpleArg(field.Type())
		if err != nil {
			return err
		}
		field.Set(simpleVal.Elem())
	}
	return nil
}

func writeField(buf io.Writer, field reflect.Value, fieldName string) {
	switch field.Kind() {
	case reflect.Bool:
		fmt.Fprintf(buf, "%s\t%v\n", fieldName, field.Bool())
	case reflect.Ptr:
		if !field.IsNil() {
			fmt.Fprintf(buf, "%s\t%v\n", fieldName, field.Elem())
		} else {
			fmt.Fprintf(buf, "%s\t<not defined>\n", fieldName)
		}
	default:
		fmt.Fprintf(buf, "%s\t%v\n", fieldName, field)
	}
}

// Split2PartsBySpace splits s into a name and the rest of the line.
func Split2PartsBySpace(s string) []string {
	v := strings.SplitN(s, " ", 2)
	for i := range v {
		v[i] = strings.TrimSpace(v[i])
	}
	return v
}
