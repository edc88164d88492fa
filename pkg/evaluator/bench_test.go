package evaluator_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/sandrolain/sonata/pkg/evaluator"
	"github.com/sandrolain/sonata/pkg/parser"
	"github.com/sandrolain/sonata/pkg/types"
)

// users builds {"users": [...]} with n members.
func users(n int) types.Value {
	departments := []string{"Engineering", "Sales", "Marketing", "HR", "Finance"}
	list := make([]types.Value, n)
	for i := range list {
		u := types.NewObject(6)
		u.Set("id", types.Number(i+1))
		u.Set("name", types.String(fmt.Sprintf("User%d", i+1)))
		u.Set("age", types.Number(20+i%40))
		u.Set("department", types.String(departments[i%len(departments)]))
		u.Set("salary", types.Number(70000+i*1000))
		u.Set("active", types.Bool(i%2 == 0))
		list[i] = u
	}
	root := types.NewObject(1)
	root.Set("users", types.NewArray(list...))
	return root
}

var benchQueries = map[string]string{
	"path":      `users.name`,
	"filter":    `users[age > 40 and active].name`,
	"aggregate": `$sum(users.salary)`,
	"group":     `users{department: $average(salary)}`,
	"sort":      `users^(>salary, name)[0..9].id`,
	"hof":       `$reduce($map(users, function($u){ $u.salary / 12 }), function($a, $b){ $a + $b })`,
	"construct": `users.{"id": id, "label": name & " (" & department & ")"}`,
}

func BenchmarkParse(b *testing.B) {
	for name, q := range benchQueries {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				if _, err := parser.Compile(q); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkEval(b *testing.B) {
	data := users(100)
	ev := evaluator.New()
	ctx := context.Background()
	for name, q := range benchQueries {
		expr, err := parser.Compile(q)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				if _, err := ev.Eval(ctx, expr, data); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkEvalMany(b *testing.B) {
	inputs := make([]types.Value, 64)
	for i := range inputs {
		inputs[i] = users(20)
	}
	expr, err := parser.Compile(benchQueries["group"])
	if err != nil {
		b.Fatal(err)
	}
	ev := evaluator.New()
	b.ReportAllocs()
	for b.Loop() {
		if _, err := ev.EvalMany(context.Background(), expr, inputs); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkTailRecursion(b *testing.B) {
	expr, err := parser.Compile(`($count := function($n, $acc){ $n = 0 ? $acc : $count($n - 1, $acc + 1) }; $count(1000, 0))`)
	if err != nil {
		b.Fatal(err)
	}
	ev := evaluator.New()
	b.ReportAllocs()
	for b.Loop() {
		if _, err := ev.Eval(context.Background(), expr, nil); err != nil {
			b.Fatal(err)
		}
	}
}
