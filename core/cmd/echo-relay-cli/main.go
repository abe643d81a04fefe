package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"gopkg.in/yaml.v3"

	"github.com/xKoRx/echo/sdk/domain"
	sdkgrpc "github.com/xKoRx/echo/sdk/grpc"
	"github.com/xKoRx/echo/sdk/rpc"
)

const defaultAddr = "localhost:50051"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "snapshot":
		err = runSnapshot(os.Args[2:])
	case "links":
		err = runLinks(os.Args[2:])
	case "events":
		err = runEvents(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "comando desconocido: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	usage := `echo-relay-cli - herramientas de operador para el relay Echo

Uso:
  echo-relay-cli snapshot [--addr host:port]
  echo-relay-cli links create --file link.yaml
  echo-relay-cli links update --file link.yaml
  echo-relay-cli links enable --id <link_id>
  echo-relay-cli links disable --id <link_id>
  echo-relay-cli links delete --id <link_id>
  echo-relay-cli links import --file links.yaml
  echo-relay-cli events tail [--limit 50] [--follow]

La dirección por defecto se toma de ECHO_RELAY_ADDR o ` + defaultAddr + `.
`
	fmt.Fprintln(os.Stderr, usage)
}

// commonFlags flags compartidos por todos los comandos.
type commonFlags struct {
	addr    *string
	timeout *time.Duration
}

func newFlagSet(name string) (*flag.FlagSet, commonFlags) {
	addr := os.Getenv("ECHO_RELAY_ADDR")
	if addr == "" {
		addr = defaultAddr
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return fs, commonFlags{
		addr:    fs.String("addr", addr, "Dirección gRPC del relay"),
		timeout: fs.Duration("timeout", 10*time.Second, "Timeout por llamada"),
	}
}

func dial(target string) (rpc.RelayClient, func(), error) {
	client, err := sdkgrpc.NewClient(sdkgrpc.DefaultClientConfig(target))
	if err != nil {
		return nil, nil, fmt.Errorf("conectando a %s: %w", target, err)
	}
	return rpc.NewRelayClient(client.Conn()), func() { _ = client.Close() }, nil
}

func printProto(m proto.Message) error {
	data, err := protojson.MarshalOptions{Indent: "  ", EmitUnpopulated: true}.Marshal(m)
	if err != nil {
		return fmt.Errorf("serializando respuesta: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func runSnapshot(args []string) error {
	fs, common := newFlagSet("snapshot")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, closeFn, err := dial(*common.addr)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), *common.timeout)
	defer cancel()
	out, err := client.Snapshot(ctx, &emptypb.Empty{})
	if err != nil {
		return err
	}
	return printProto(out)
}

func runLinks(args []string) error {
	if len(args) == 0 {
		printUsage()
		return errors.New("falta subcomando de links")
	}

	sub := args[0]
	fs, common := newFlagSet("links " + sub)
	file := fs.String("file", "", "Archivo YAML con el link (o lista de links para import)")
	id := fs.String("id", "", "link_id")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	client, closeFn, err := dial(*common.addr)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), *common.timeout)
	defer cancel()

	switch sub {
	case "create", "update":
		link, err := readLink(*file)
		if err != nil {
			return err
		}
		in, err := rpc.ToStruct(link)
		if err != nil {
			return err
		}
		call := client.CreateLink
		if sub == "update" {
			call = client.UpdateLink
		}
		out, err := call(ctx, in)
		if err != nil {
			return err
		}
		return printProto(out)

	case "enable", "disable":
		if *id == "" {
			return errors.New("--id es requerido")
		}
		in, err := rpc.ToStruct(rpc.SetLinkEnabledRequest{LinkID: *id, Enabled: sub == "enable"})
		if err != nil {
			return err
		}
		out, err := client.SetLinkEnabled(ctx, in)
		if err != nil {
			return err
		}
		return printProto(out)

	case "delete":
		if *id == "" {
			return errors.New("--id es requerido")
		}
		in, err := rpc.ToStruct(rpc.DeleteLinkRequest{LinkID: *id})
		if err != nil {
			return err
		}
		if _, err := client.DeleteLink(ctx, in); err != nil {
			return err
		}
		fmt.Printf("link %s eliminado\n", *id)
		return nil

	case "import":
		return importLinks(ctx, client, *file)

	default:
		printUsage()
		return fmt.Errorf("subcomando links desconocido: %s", sub)
	}
}

func readLink(path string) (domain.Link, error) {
	var link domain.Link
	if path == "" {
		return link, errors.New("--file es requerido")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return link, err
	}
	if err := yaml.Unmarshal(data, &link); err != nil {
		return link, fmt.Errorf("parseando %s: %w", path, err)
	}
	return link, nil
}

// importLinks crea cada link del archivo; si ya existe lo actualiza.
func importLinks(ctx context.Context, client rpc.RelayClient, path string) error {
	if path == "" {
		return errors.New("--file es requerido")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc struct {
		Links []domain.Link `yaml:"links"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parseando %s: %w", path, err)
	}

	for _, link := range doc.Links {
		in, err := rpc.ToStruct(link)
		if err != nil {
			return err
		}
		action := "creado"
		_, err = client.CreateLink(ctx, in)
		if status.Code(err) == codes.AlreadyExists && link.LinkID != "" {
			action = "actualizado"
			_, err = client.UpdateLink(ctx, in)
		}
		if err != nil {
			return fmt.Errorf("link %s->%s: %w", link.SourceAccount, link.DestinationAccount, err)
		}
		fmt.Printf("link %s->%s %s\n", link.SourceAccount, link.DestinationAccount, action)
	}
	return nil
}

func runEvents(args []string) error {
	if len(args) == 0 || args[0] != "tail" {
		printUsage()
		return errors.New("uso: events tail")
	}

	fs, common := newFlagSet("events tail")
	limit := fs.Int("limit", 50, "Cantidad de eventos recientes")
	follow := fs.Bool("follow", false, "Mantener el stream abierto")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	client, closeFn, err := dial(*common.addr)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if !*follow {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *common.timeout)
		defer cancel()
	}

	in, err := rpc.ToStruct(rpc.RecentEventsRequest{Limit: *limit, Follow: *follow})
	if err != nil {
		return err
	}
	stream, err := client.RecentEvents(ctx, in)
	if err != nil {
		return err
	}
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
			return nil
		}
		if err != nil {
			return err
		}
		if err := printProto(msg); err != nil {
			return err
		}
	}
}
