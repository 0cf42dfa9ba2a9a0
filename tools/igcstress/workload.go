package main

import "fmt"
import "strconv"

import "github.com/prataprc/goparsec"

// production one workload statement: a verb and a repeat count.
type production struct {
	verb  string
	count int
}

// parseworkload parse a workload production text of the form
//
//	cons 100000; symbol 1000; bind 5000; idle 10
//
// into the list of productions to execute.
func parseworkload(text string) ([]production, error) {
	verb := parsec.Token(`(cons|symbol|bind|idle)`, "VERB")
	count := parsec.Token(`[0-9]+`, "COUNT")
	semi := parsec.Token(`;`, "SEMI")

	stmt := parsec.And(nil, verb, count)
	stmts := parsec.Kleene(nil, stmt, semi)

	scanner := parsec.NewScanner([]byte(text))
	node, _ := stmts(scanner)
	if node == nil {
		return nil, fmt.Errorf("no productions in %q", text)
	}

	workload := make([]production, 0, 8)
	for _, item := range node.([]parsec.ParsecNode) {
		terms := item.([]parsec.ParsecNode)
		verb := terms[0].(*parsec.Terminal).Value
		count, err := strconv.Atoi(terms[1].(*parsec.Terminal).Value)
		if err != nil {
			return nil, err
		}
		workload = append(workload, production{verb: verb, count: count})
	}
	return workload, nil
}
