package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"log"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modeld/monosynth/src/engine"
	"golang.org/x/sync/errgroup"
)

const sockFileName = "/tmp/monosynth.sock"

func main() {
	flag.Parse()
	log.SetFlags(log.Lshortfile)

	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eng, err := engine.NewEngine()
	if err != nil {
		log.Fatalf("error: %v\n", err)
	}
	defer eng.Close()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, os.Kill, syscall.SIGTERM)
	defer func() {
		signal.Stop(signalCh)
		cancel()
	}()
	go func() {
		sig := <-signalCh
		log.Printf("Caught signal %s: shutting down...\n", sig)
		cancel()
	}()
	err = withIPCConnection(ctx, func(conn net.Conn) error {
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return eng.Start(ctx)
		})
		g.Go(func() error {
			return receiveCommands(ctx, conn, eng.CommandCh)
		})
		g.Go(func() error {
			return pumpMidi(ctx, eng)
		})
		g.Go(func() error {
			return sendReports(ctx, conn, eng)
		})
		return g.Wait()
	})
	if err != nil {
		log.Fatalf("error: %v\n", err)
	}
	log.Println("main() ended.")
}

func withIPCConnection(ctx context.Context, f func(net.Conn) error) error {
	os.Remove(sockFileName)
	listener, err := new(net.ListenConfig).Listen(ctx, "unix", sockFileName)
	if err != nil {
		return err
	}
	defer func() {
		log.Println("Closing IPC...")
		if err := listener.Close(); err != nil {
			log.Printf("error while closing listener: %v", err)
		}
		os.Remove(sockFileName)
	}()
	log.Printf("start listening...\n")
	conn, err := listener.Accept()
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Printf("error while closing connection: %v", err)
		}
	}()
	return f(conn)
}

func receiveCommands(ctx context.Context, conn net.Conn, commandCh chan<- []string) error {
	reader := bufio.NewReader(conn)
	var line []byte
loop:
	for {
		select {
		case <-ctx.Done():
			log.Println("Connection interrupted")
			break loop
		default:
		}
		next, isPrefix, err := reader.ReadLine()
		if err == io.EOF {
			break loop
		}
		if err != nil {
			return err
		}
		line = append(line, next...)
		if isPrefix {
			continue
		}
		command, err := parseCommand(string(line))
		if err != nil {
			return err
		}
		commandCh <- command
		line = []byte{}
	}
	log.Println("receiveCommands() ended.")
	return nil
}

func parseCommand(line string) ([]string, error) {
	lineStr := strings.Split(line, " ")
	for i, item := range lineStr {
		escaped, err := url.QueryUnescape(item)
		if err != nil {
			return nil, err
		}
		lineStr[i] = escaped
	}
	return lineStr, nil
}

func pumpMidi(ctx context.Context, eng *engine.Engine) error {
	translator := engine.NewMidiTranslator(eng)
	for data := range engine.ListenToMidiIn(ctx) {
		translator.Handle(data)
	}
	log.Println("pumpMidi() ended.")
	return nil
}

func sendReports(ctx context.Context, conn net.Conn, eng *engine.Engine) error {
	t := time.NewTicker(time.Second / 30)
	defer t.Stop()
loop:
	for {
		select {
		case <-ctx.Done():
			log.Println("sendReports() interrupted")
			break loop
		case <-t.C:
			if !eng.Changes.Has("data") {
				continue
			}
			eng.Changes.Delete("data")
			data := eng.ToJSON()
			if _, err := conn.Write(append(append([]byte("params "), data...), '\n')); err != nil {
				log.Printf("failed to send report: %v\n", err)
			}
		}
	}
	log.Println("sendReports() ended.")
	return nil
}
