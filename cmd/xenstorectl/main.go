// Command xenstorectl reads, writes and watches nodes in XenStore from the
// command line, speaking to xenstored over its unix socket or the
// /dev/xen/xenbus device file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	_ "net/http/pprof" // anonymous import to get the pprof handler registered

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rfratto/xenstore/internal/cmdutil"
	"github.com/rfratto/xenstore/xs"
	"github.com/rfratto/xenstore/xs/unixconn"
	"github.com/vmihailenco/msgpack/v5"
)

const usage = `usage: xenstorectl [flags] <command> [args]

commands:
  read PATH            print the value of PATH
  write PATH VALUE     store VALUE at PATH
  mkdir PATH           create directory PATH
  rm PATH              remove PATH
  ls PATH              list the children of PATH
  exists PATH          exit 0 if PATH exists, 1 otherwise
  watch PATH           stream change notifications for PATH
  dump PATH            walk the subtree under PATH and print it
  debug MSG            send a DEBUG print to xenstored
`

var watchEventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "xenstorectl_watch_events_total",
	Help: "Watch notifications received from xenstored.",
})

func main() {
	var (
		ll cmdutil.LogLevel
		lf cmdutil.LogFormat

		socketPath string
		devicePath string
		listenAddr string
		dumpFormat string
	)

	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.Var(&ll, "log.level", "Level to display logs at")
	fs.Var(&lf, "log.format", "Format to display logs in (logfmt, json)")
	fs.StringVar(&socketPath, "socket", "", "Path to the xenstored unix socket")
	fs.StringVar(&devicePath, "device", "", "Path to the xenbus device file; used when -socket is not given")
	fs.StringVar(&listenAddr, "listen-addr", "127.0.0.1:9600", "Listen address for the metrics server in watch mode")
	fs.StringVar(&dumpFormat, "format", "text", "Output format for dump (text, msgpack)")

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing flags: %s", err.Error())
		os.Exit(1)
	}

	l := cmdutil.NewLogger(os.Stderr, ll, lf)

	args := fs.Args()
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	conn, err := dialStore(l, socketPath, devicePath)
	if err != nil {
		level.Error(l).Log("msg", "failed to connect to xenstored", "err", err)
		os.Exit(1)
	}
	client := xs.New(l, conn)
	defer client.Close()

	if err := runCommand(l, client, listenAddr, dumpFormat, args); err != nil {
		level.Error(l).Log("msg", "command failed", "command", args[0], "err", err)
		os.Exit(1)
	}
}

// dialStore picks an endpoint: an explicit socket or device flag wins,
// otherwise the well-known socket, a per-user development socket, and
// finally the guest device file are tried in order.
func dialStore(l log.Logger, socketPath, devicePath string) (xs.Transport, error) {
	switch {
	case socketPath != "":
		return unixconn.Dial(l, socketPath)
	case devicePath != "":
		return unixconn.OpenDevice(l, devicePath)
	}

	if _, err := os.Stat(unixconn.DefaultSocketPath); err == nil {
		return unixconn.Dial(l, unixconn.DefaultSocketPath)
	}
	if userSock, err := homedir.Expand("~/.xenstored/socket"); err == nil {
		if _, err := os.Stat(userSock); err == nil {
			return unixconn.Dial(l, userSock)
		}
	}
	return unixconn.OpenDevice(l, unixconn.DefaultDevicePath)
}

func runCommand(l log.Logger, client *xs.Client, listenAddr, dumpFormat string, args []string) error {
	cmd, args := args[0], args[1:]

	switch cmd {
	case "read":
		if len(args) != 1 {
			return errors.New("read expects PATH")
		}
		val, err := client.Read(xs.NoTx, args[0], "")
		if err != nil {
			return err
		}
		fmt.Println(string(val))
		return nil

	case "write":
		if len(args) != 2 {
			return errors.New("write expects PATH VALUE")
		}
		return client.Write(xs.NoTx, args[0], "", args[1])

	case "mkdir":
		if len(args) != 1 {
			return errors.New("mkdir expects PATH")
		}
		return client.Mkdir(xs.NoTx, args[0], "")

	case "rm":
		if len(args) != 1 {
			return errors.New("rm expects PATH")
		}
		return client.Rm(xs.NoTx, args[0], "")

	case "ls":
		if len(args) != 1 {
			return errors.New("ls expects PATH")
		}
		ents, err := client.Directory(xs.NoTx, args[0], "")
		if err != nil {
			return err
		}
		for _, ent := range ents {
			fmt.Println(ent)
		}
		return nil

	case "exists":
		if len(args) != 1 {
			return errors.New("exists expects PATH")
		}
		if !client.Exists(xs.NoTx, args[0], "") {
			os.Exit(1)
		}
		return nil

	case "watch":
		if len(args) != 1 {
			return errors.New("watch expects PATH")
		}
		return watchPath(l, client, listenAddr, args[0])

	case "dump":
		if len(args) != 1 {
			return errors.New("dump expects PATH")
		}
		return dumpTree(client, dumpFormat, args[0])

	case "debug":
		if len(args) != 1 {
			return errors.New("debug expects MSG")
		}
		return client.DebugWrite(args[0])

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// watchPath streams change notifications until interrupted, serving metrics
// and pprof on the side.
func watchPath(l log.Logger, client *xs.Client, listenAddr, path string) error {
	prometheus.MustRegister(watchEventsTotal)

	var group run.Group

	// Information server worker
	{
		lis, err := net.Listen("tcp", listenAddr)
		if err != nil {
			return fmt.Errorf("failed to create listener for HTTP server: %w", err)
		}

		r := mux.NewRouter()
		r.Handle("/metrics", promhttp.Handler())
		r.PathPrefix("/debug/pprof").Handler(http.DefaultServeMux)
		srv := http.Server{Handler: r}

		group.Add(func() error {
			err := srv.Serve(lis)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}, func(_ error) {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				_ = srv.Close()
			}
		})
	}

	// watch worker
	{
		ctx, cancel := context.WithCancel(context.Background())

		w := &xs.Watch{Node: path, Callback: func(w *xs.Watch, vec []string) {
			watchEventsTotal.Inc()
			level.Info(l).Log("msg", "watch fired", "path", vec[xs.WatchPath])
		}}

		group.Add(func() error {
			if err := client.Watch(w); err != nil {
				return fmt.Errorf("failed to register watch on %s: %w", path, err)
			}
			level.Info(l).Log("msg", "watching", "path", path)
			<-ctx.Done()
			client.Unwatch(w)
			return nil
		}, func(_ error) {
			cancel()
		})
	}

	// signal worker
	{
		ctx, cancel := context.WithCancel(context.Background())

		group.Add(func() error {
			ch := make(chan os.Signal, 2)
			signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(ch)

			select {
			case <-ch:
				level.Info(l).Log("msg", "received shutdown signal")
			case <-ctx.Done():
			}
			return nil
		}, func(_ error) {
			cancel()
		})
	}

	return group.Run()
}

// dumpNode is one node of a dumped subtree.
type dumpNode struct {
	Value    string               `msgpack:"value"`
	Children map[string]*dumpNode `msgpack:"children,omitempty"`
}

func dumpTree(client *xs.Client, format, path string) error {
	root, err := walk(client, path)
	if err != nil {
		return err
	}

	switch format {
	case "text":
		printNode(path, root)
		return nil
	case "msgpack":
		raw, err := msgpack.Marshal(root)
		if err != nil {
			return fmt.Errorf("failed to encode dump: %w", err)
		}
		_, err = os.Stdout.Write(raw)
		return err
	default:
		return fmt.Errorf("unknown dump format %q", format)
	}
}

func walk(client *xs.Client, path string) (*dumpNode, error) {
	node := &dumpNode{}

	val, err := client.Read(xs.NoTx, path, "")
	if err == nil {
		node.Value = string(val)
	} else if !errors.Is(err, xs.ErrorNotExist) {
		return nil, err
	}

	ents, err := client.Directory(xs.NoTx, path, "")
	if err != nil {
		return nil, err
	}
	for _, ent := range ents {
		child, err := walk(client, path+"/"+ent)
		if err != nil {
			return nil, err
		}
		if node.Children == nil {
			node.Children = map[string]*dumpNode{}
		}
		node.Children[ent] = child
	}
	return node, nil
}

func printNode(path string, node *dumpNode) {
	fmt.Printf("%s = %q\n", path, node.Value)

	names := make([]string, 0, len(node.Children))
	for name := range node.Children {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		printNode(path+"/"+name, node.Children[name])
	}
}
