// Command peer runs one replica of the five-way replicated bank ledger
// and exposes an interactive REPL for issuing transfers and operator
// commands against it.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/paxosledger/bankchain/internal/peer"
	"github.com/paxosledger/bankchain/internal/storage"
	"github.com/paxosledger/bankchain/internal/transport"
)

func main() {
	id := flag.Int("id", 1, "this peer's id, in [1,5]")
	groupSize := flag.Int("group-size", 5, "number of peers in the group")
	host := flag.String("host", "127.0.0.1", "host all peers listen on")
	dataDir := flag.String("data-dir", "", "directory for durable state (defaults to ./data/peer-<id>)")
	debug := flag.Bool("debug", false, "enable debug-level logging")
	delay := flag.Duration("message-delay", 0, "fixed pre-handle delay applied by each worker, for ordering stress-tests")
	workers := flag.Int("workers", 4, "worker pool size")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *debug {
		log.SetLevel(logrus.DebugLevel)
	}

	dir := *dataDir
	if dir == "" {
		dir = fmt.Sprintf("data/peer-%d", *id)
	}
	store, err := storage.Open(dir)
	if err != nil {
		log.WithError(err).Fatal("open durable store")
	}
	defer store.Close()

	listener, err := transport.Listen(*host, *id)
	if err != nil {
		log.WithError(err).Fatal("listen")
	}
	sender := transport.NewSender(*host)

	p, err := peer.New(peer.Config{
		ID:           *id,
		GroupSize:    *groupSize,
		Out:          sender,
		In:           listener,
		Store:        store,
		Logger:       log,
		Workers:      *workers,
		MessageDelay: *delay,
	})
	if err != nil {
		log.WithError(err).Fatal("construct peer")
	}

	go p.Run()
	defer p.Stop()

	runREPL(p, log)
}

var transferPattern = regexp.MustCompile(`^(?:moneytransfer|mt)\s*\(\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*\)$`)
var debugPattern = regexp.MustCompile(`^(?:debugmessage|debug)\s*\(\s*(\d+)\s*,\s*(.*)\)$`)

// runREPL implements the operator command grammar: failprocess/fail,
// fixprocess/fix, printblockchain/blocks, printbalance/bal,
// moneytransfer(from,to,amt)/mt(...), debugmessage(to,text)/debug(...).
func runREPL(p *peer.Peer, log *logrus.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Printf("peer %d ready\n", p.ID())
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)

		switch {
		case lower == "failprocess" || lower == "fail":
			p.Fail()
		case lower == "fixprocess" || lower == "fix":
			p.Fix()
		case lower == "printblockchain" || lower == "blocks":
			for i, b := range p.PrintChain() {
				fmt.Printf("%d: %s\n", i, b.String())
			}
		case lower == "printbalance" || lower == "bal":
			balances := p.PrintBalance()
			for id := 1; id <= 5; id++ {
				fmt.Printf("account %d: %d\n", id, balances[id])
			}
		case transferPattern.MatchString(lower):
			m := transferPattern.FindStringSubmatch(lower)
			from, _ := strconv.Atoi(m[1])
			to, _ := strconv.Atoi(m[2])
			amount, _ := strconv.ParseInt(m[3], 10, 64)
			if err := p.Propose(from, to, amount); err != nil {
				fmt.Printf("rejected: %v\n", err)
			}
		case debugPattern.MatchString(line):
			m := debugPattern.FindStringSubmatch(line)
			target, _ := strconv.Atoi(m[1])
			p.DebugMessage(target, m[2])
		default:
			fmt.Println("unrecognized command")
		}
	}
	if err := scanner.Err(); err != nil {
		log.WithError(err).Error("reading stdin")
	}
}
