// Command recplan is a small demonstration driver: it seeds an in-memory
// record store, plans a permuted grouped-aggregate query, and runs the chosen
// plan, printing the memo, the plan tree and the results.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/touba73/fdb-record-layer/cat"
	"github.com/touba73/fdb-record-layer/exec"
	"github.com/touba73/fdb-record-layer/kv"
	"github.com/touba73/fdb-record-layer/opt"
	"github.com/touba73/fdb-record-layer/plan"
)

var (
	rows    = flag.Int64("rows", 100, "records to seed")
	dotMemo = flag.Bool("dot", false, "print the memo as a dot graph instead of text")
)

func run() error {
	catalog := cat.NewCatalog()
	if err := catalog.AddType(&cat.RecordType{
		Name: "metrics",
		Columns: []cat.Column{
			{Name: "rec_no", Ordinal: 0, Type: cat.Int},
			{Name: "num_value2", Ordinal: 1, Type: cat.Int},
			{Name: "num_value3", Ordinal: 2, Type: cat.Int},
			{Name: "num_value_unique", Ordinal: 3, Type: cat.Int},
		},
		PrimaryKey: []string{"rec_no"},
	}); err != nil {
		return err
	}
	if err := catalog.AddIndex("metrics", &cat.Index{
		Name:       "max_by_value3_value2",
		KeyColumns: []string{"num_value3", "num_value2"},
		Options: map[string]string{
			cat.AggregateKindOption:   "max",
			cat.AggregateColumnOption: "num_value_unique",
			cat.PermutedSizeOption:    "2",
		},
	}); err != nil {
		return err
	}

	rs := exec.NewRecordStore(kv.NewMemStore(), catalog)
	for i := int64(0); i < *rows; i++ {
		if err := rs.Insert("metrics", exec.Row{
			"rec_no":           plan.IntDatum(i),
			"num_value2":       plan.IntDatum(i % 3),
			"num_value3":       plan.IntDatum(i % 5),
			"num_value_unique": plan.IntDatum(1000 - i),
		}); err != nil {
			return err
		}
	}
	if err := rs.Commit(); err != nil {
		return err
	}

	// SELECT num_value2, num_value3, max(num_value_unique)
	// FROM metrics GROUP BY num_value2, num_value3
	p := opt.NewPlanner(opt.DefaultConfig(catalog))
	f := p.Factory()
	scan, err := f.ConstructScan("metrics")
	if err != nil {
		return err
	}
	m := opt.NewAlias()
	rec := opt.QuantifiedRecord(m, p.Memo().GroupType(scan))
	v2, err := opt.OfFieldName(rec, "num_value2")
	if err != nil {
		return err
	}
	v3, err := opt.OfFieldName(rec, "num_value3")
	if err != nil {
		return err
	}
	uniq, err := opt.OfFieldName(rec, "num_value_unique")
	if err != nil {
		return err
	}
	root, err := f.ConstructGroupBy(
		opt.ForEachOf(m, scan), []*opt.Value{v2, v3}, opt.Aggregate("max", uniq), "max_value")
	if err != nil {
		return err
	}

	node, err := p.Plan(root)
	if err != nil {
		return err
	}

	if *dotMemo {
		fmt.Println(p.Memo().Graph())
	} else {
		fmt.Print(p.Memo())
	}
	fmt.Printf("plan:\n%s\n", node)

	out, err := exec.NewExecutor(rs).Run(node)
	if err != nil {
		return err
	}
	for _, row := range out {
		fmt.Printf("%s %s %s\n", row["num_value2"], row["num_value3"], row["max_value"])
	}
	return nil
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "recplan: %v\n", err)
		os.Exit(1)
	}
}
