package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/scenectl/internal/config"
	"github.com/danmuck/scenectl/internal/engine"
	"github.com/danmuck/scenectl/internal/logging"
	"github.com/danmuck/scenectl/internal/scene"
)

const usageText = `usage: scenectl [flags] <command> [args]

commands:
  dump   [identifier]                  export a subtree (root by default)
  find   <identifier>                  list nodes matching a DEF, type, or handle
  fields <identifier>                  list a node's field names
  get    <identifier> <field>          print a field's value(s)
  set    <identifier> <field> <value>  write a single-value field
  import <identifier> <field> <src>    append a subtree (inline text or file path)

flags:
`

func main() {
	var (
		configPath string
		engineAddr string
	)
	flag.StringVar(&configPath, "config", "", "path to scenectl TOML config")
	flag.StringVar(&engineAddr, "addr", "", "engine address (overrides config)")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usageText)
		flag.PrintDefaults()
	}
	flag.Parse()

	logging.ConfigureRuntime()

	cfg := config.DefaultClientConfig()
	if configPath != "" {
		loaded, err := config.LoadClientConfig(configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load client config")
		}
		cfg = loaded
	}
	if engineAddr != "" {
		cfg.EngineAddr = engineAddr
	}
	logging.SetLevel(cfg.LogLevel)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(cfg, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "scenectl: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.ClientConfig, command string, args []string) error {
	client, err := engine.Dial(context.Background(), engine.ClientConfig{
		Address:        cfg.EngineAddr,
		ConnectTimeout: cfg.ConnectTimeout.Duration,
		RequestTimeout: cfg.RequestTimeout.Duration,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	world, err := scene.NewWorld(client)
	if err != nil {
		return err
	}

	switch command {
	case "dump":
		return cmdDump(world, args)
	case "find":
		return cmdFind(world, args)
	case "fields":
		return cmdFields(world, args)
	case "get":
		return cmdGet(world, args)
	case "set":
		return cmdSet(world, args)
	case "import":
		return cmdImport(world, args)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// resolve locates a node by DEF name, type name, or decimal handle.
func resolve(world *scene.World, identifier string) (*scene.Node, error) {
	n, err := world.Find(identifier)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("no node matches %q", identifier)
	}
	return n, nil
}

func cmdDump(world *scene.World, args []string) error {
	n := world.Root()
	if len(args) > 0 {
		found, err := resolve(world, args[0])
		if err != nil {
			return err
		}
		n = found
	}
	text, err := n.Export()
	if err != nil {
		return err
	}
	fmt.Println(text)
	return nil
}

func cmdFind(world *scene.World, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("find wants exactly one identifier")
	}
	nodes, err := world.FindAll(args[0])
	if err != nil {
		return err
	}
	for _, n := range nodes {
		line := fmt.Sprintf("%d\t%s", n.Handle(), n.Type())
		if def := n.DefName(); def != "" {
			line += "\tDEF " + def
		}
		fmt.Println(line)
	}
	if len(nodes) == 0 {
		return fmt.Errorf("no node matches %q", args[0])
	}
	return nil
}

func cmdFields(world *scene.World, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("fields wants exactly one identifier")
	}
	n, err := resolve(world, args[0])
	if err != nil {
		return err
	}
	names, err := n.FieldNames()
	if err != nil {
		return err
	}
	for _, name := range names {
		f, err := n.Field(name)
		if err != nil {
			return err
		}
		kind := f.Kind().String()
		if f.IsSequence() {
			kind += "[]"
		}
		fmt.Printf("%s\t%s\n", name, kind)
	}
	return nil
}

func cmdGet(world *scene.World, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("get wants an identifier and a field name")
	}
	n, err := resolve(world, args[0])
	if err != nil {
		return err
	}
	f, err := n.Field(args[1])
	if err != nil {
		return err
	}
	if f.IsSequence() {
		values, err := f.Values()
		if err != nil {
			return err
		}
		for _, v := range values {
			fmt.Println(v.String())
		}
		return nil
	}
	v, err := f.Get()
	if err != nil {
		return err
	}
	fmt.Println(v.String())
	return nil
}

func cmdSet(world *scene.World, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("set wants an identifier, a field name, and a value")
	}
	n, err := resolve(world, args[0])
	if err != nil {
		return err
	}
	f, err := n.Field(args[1])
	if err != nil {
		return err
	}
	return f.Set(parseValueArgs(args[2:]))
}

func cmdImport(world *scene.World, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("import wants an identifier, a field name, and a subtree source")
	}
	n, err := resolve(world, args[0])
	if err != nil {
		return err
	}
	f, err := n.Field(args[1])
	if err != nil {
		return err
	}
	count, err := f.Len()
	if err != nil {
		return err
	}
	imported, err := f.Import(count, args[2])
	if err != nil {
		return err
	}
	fmt.Printf("%d\t%s\n", imported.Handle(), imported.Type())
	return nil
}

// parseValueArgs maps command-line words onto a write input. Single words
// become bool, float, or string; multiple numeric words become a vector.
func parseValueArgs(words []string) any {
	if len(words) == 1 {
		w := words[0]
		switch strings.ToUpper(w) {
		case "TRUE":
			return true
		case "FALSE":
			return false
		}
		if v, err := strconv.ParseFloat(w, 64); err == nil {
			return v
		}
		return w
	}

	vec := make([]float64, 0, len(words))
	for _, w := range words {
		v, err := strconv.ParseFloat(w, 64)
		if err != nil {
			return strings.Join(words, " ")
		}
		vec = append(vec, v)
	}
	return vec
}
