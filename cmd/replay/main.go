// Package main replays a recorded arena duel from its seed and combatants and
// prints the resulting combat log.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/idlebattle/internal/config"
	"github.com/cory-johannsen/idlebattle/internal/game/arena"
	"github.com/cory-johannsen/idlebattle/internal/game/combat"
	"github.com/cory-johannsen/idlebattle/internal/game/combatlog"
)

// duelFile is the on-disk description of a duel to replay.
type duelFile struct {
	Seed       int64            `yaml:"seed"`
	Challenger combat.Combatant `yaml:"challenger"`
	Defender   combat.Combatant `yaml:"defender"`
	Rewards    struct {
		Experience int      `yaml:"experience"`
		Gold       int      `yaml:"gold"`
		Items      []string `yaml:"items"`
	} `yaml:"rewards"`
}

func main() {
	configPath := flag.String("config", "", "optional configuration file supplying combat rules")
	asJSON := flag.Bool("json", false, "print the full result as JSON")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: replay [-config path] [-json] duel.yaml")
		os.Exit(2)
	}

	rules := combat.DefaultRules()
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
		rules = cfg.Combat.Rules()
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatalf("reading duel file: %v", err)
	}
	var duel duelFile
	if err := yaml.Unmarshal(data, &duel); err != nil {
		log.Fatalf("parsing duel file: %v", err)
	}
	if duel.Challenger.Stats.Health == 0 {
		duel.Challenger.Stats.Health = duel.Challenger.Stats.MaxHealth
	}
	if duel.Defender.Stats.Health == 0 {
		duel.Defender.Stats.Health = duel.Defender.Stats.MaxHealth
	}

	svc := arena.NewService(combatlog.NewStorage(), arena.WithRules(rules))
	rewards := combat.Rewards{Experience: duel.Rewards.Experience, Gold: duel.Rewards.Gold, ItemIDs: duel.Rewards.Items}
	result, err := svc.Replay(duel.Seed, duel.Challenger, duel.Defender, rewards)
	if err != nil {
		log.Fatalf("replaying duel: %v", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			log.Fatalf("encoding result: %v", err)
		}
		return
	}

	for _, entry := range result.Logs {
		fmt.Fprintf(os.Stdout, "[turn %d] %s\n", entry.Turn, entry.Description)
	}
	fmt.Fprintf(os.Stdout, "winner=%s loser=%s turns=%d turn_limit=%v\n",
		result.WinnerID, result.LoserID, result.Turns, result.TurnLimitReached)
}
