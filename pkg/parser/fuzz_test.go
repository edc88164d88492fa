package parser_test

import (
	"testing"

	"github.com/sandrolain/sonata/pkg/parser"
)

func FuzzParser(f *testing.F) {
	seeds := []string{
		`$.name`,
		`$.items[price > 100]`,
		`$sum($.prices)`,
		`$map($.items, function($v) { $v.price * 2 })`,
		`Account.Order.Product{Name: $sum(Quantity)}`,
		`items^(>price).name`,
		`$ ~> |a|{"b": 1}, ["c"]|`,
		`[1..10][$ % 2 = 0]`,
		`/ab+/i`,
		`$`,
		`$$`,
		`1 + 2 * 3`,
		``,
		`(`,
		`$foo(`,
		`"\u`,
	}
	for _, s := range seeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, input string) {
		_, _ = parser.Compile(input)
		_, _ = parser.Compile(input, parser.WithRecovery())
	})
}
