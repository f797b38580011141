package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/erisproject/eris-sub002/internal/opt"
	"github.com/erisproject/eris-sub002/internal/sim"
)

const exchangeYAML = `
name: exchange
money: money
goods:
  - name: money
  - name: bread
firms:
  - name: bakery
    capacity: 10
markets:
  - name: bread
    output:
      bread: 1
    price_unit:
      money: 1
    price: 1.5
    firms: [bakery]
    stepper:
      step: 0.3
    quantity_pricer:
      increase: 0.2
      max_tries: 4
agents:
  - name: alice
    assets:
      money: 5
    income:
      money: 5
    utility:
      type: quadratic
      linear:
        bread: 2
    spender:
      markets: [bread]
      rounds: 16
`

func writeScenario(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestLoadParsesScenario(t *testing.T) {
	sc, err := Load(writeScenario(t, exchangeYAML))
	assert.NoError(t, err)

	assert.Equal(t, "exchange", sc.Name)
	assert.Equal(t, "money", sc.Money)
	assert.Len(t, sc.Goods, 2)
	assert.Len(t, sc.Firms, 1)
	assert.InDelta(t, 10.0, sc.Firms[0].Capacity, 1e-9)

	m := sc.Markets[0]
	assert.InDelta(t, 1.5, m.Price, 1e-9)
	assert.Equal(t, []string{"bakery"}, m.Firms)
	assert.InDelta(t, 0.3, m.Stepper.Step, 1e-9)
	assert.InDelta(t, 0.2, m.Pricer.Increase, 1e-9)
	assert.Equal(t, 4, m.Pricer.MaxTries)

	a := sc.Agents[0]
	assert.Equal(t, "quadratic", a.Utility.Type)
	assert.InDelta(t, 2.0, a.Utility.Linear["bread"], 1e-9)
	assert.Equal(t, 16, a.Spender.Rounds)
	assert.InDelta(t, 5.0, a.Income["money"], 1e-9)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "read scenario")
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := Load(writeScenario(t, "goods: {not: [valid"))
	assert.ErrorContains(t, err, "parse scenario")
}

func TestBuildAssemblesWorld(t *testing.T) {
	sc, err := Load(writeScenario(t, exchangeYAML))
	assert.NoError(t, err)

	s := sim.New(sim.Options{})
	w, err := sc.Build(s, nil)
	assert.NoError(t, err)

	assert.Same(t, w.Goods["money"], w.Money)
	assert.InDelta(t, 1.5, w.Markets["bread"].CurrentPrice(), 1e-9)
	assert.InDelta(t, 5.0, w.Agents["alice"].Assets()[w.Money.ID()], 1e-9)

	assert.Equal(t, 2, s.CountOf(sim.KindGood))
	assert.Equal(t, 1, s.CountOf(sim.KindMarket))
	// The firm counts as an agent alongside alice.
	assert.Equal(t, 2, s.CountOf(sim.KindAgent))
	// Stepper and income stream.
	assert.Equal(t, 2, s.CountOf(sim.KindInterOpt))
	// Quantity pricer and spender.
	assert.Equal(t, 2, s.CountOf(sim.KindIntraOpt))
}

func TestBuildErrors(t *testing.T) {
	good := func(names ...string) []GoodSpec {
		out := make([]GoodSpec, len(names))
		for i, n := range names {
			out[i] = GoodSpec{Name: n}
		}
		return out
	}

	cases := []struct {
		name string
		sc   Scenario
		want string
	}{
		{
			name: "empty good name",
			sc:   Scenario{Goods: []GoodSpec{{}}},
			want: "empty name",
		},
		{
			name: "duplicate good",
			sc:   Scenario{Goods: good("x", "x")},
			want: `good "x" declared twice`,
		},
		{
			name: "undeclared money",
			sc:   Scenario{Money: "gold", Goods: good("money")},
			want: `money good "gold" not declared`,
		},
		{
			name: "duplicate firm",
			sc:   Scenario{Firms: []FirmSpec{{Name: "f"}, {Name: "f"}}},
			want: `firm "f" declared twice`,
		},
		{
			name: "undeclared market firm",
			sc: Scenario{Markets: []MarketSpec{
				{Name: "m", Firms: []string{"ghost"}},
			}},
			want: `firm "ghost" not declared`,
		},
		{
			name: "undeclared output good",
			sc: Scenario{Markets: []MarketSpec{
				{Name: "m", Output: map[string]float64{"ghost": 1}},
			}},
			want: `good "ghost" not declared`,
		},
		{
			name: "undeclared asset good",
			sc: Scenario{Agents: []AgentSpec{
				{Name: "a", Assets: map[string]float64{"ghost": 1}},
			}},
			want: `good "ghost" not declared`,
		},
		{
			name: "unsupported utility",
			sc: Scenario{Agents: []AgentSpec{
				{Name: "a", Utility: &UtilitySpec{Type: "linear"}},
			}},
			want: `utility type "linear" not supported`,
		},
		{
			name: "spender without money",
			sc: Scenario{Agents: []AgentSpec{
				{Name: "a", Spender: &SpenderSpec{}},
			}},
			want: "names no money good",
		},
		{
			name: "undeclared spender market",
			sc: Scenario{
				Money: "money",
				Goods: good("money"),
				Agents: []AgentSpec{
					{Name: "a", Spender: &SpenderSpec{Markets: []string{"ghost"}}},
				},
			},
			want: `market "ghost" not declared`,
		},
		{
			name: "policy without scripting",
			sc: Scenario{
				Money: "money",
				Goods: good("money"),
				Agents: []AgentSpec{
					{Name: "a", Spender: &SpenderSpec{Policy: "greedy"}},
				},
			},
			want: `names policy "greedy" but scripting is disabled`,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := c.sc.Build(sim.New(sim.Options{}), nil)
			assert.ErrorContains(t, err, c.want)
		})
	}
}

type policyMap map[string]opt.Policy

func (m policyMap) Policy(name string) (opt.Policy, error) {
	p, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("policy %q not found", name)
	}
	return p, nil
}

type idlePolicy struct{}

func (idlePolicy) Plan(opt.PolicyContext) ([]opt.Order, error) { return nil, nil }
func (idlePolicy) Sequential() bool                            { return false }

func TestBuildResolvesPolicies(t *testing.T) {
	sc := Scenario{
		Money: "money",
		Goods: []GoodSpec{{Name: "money"}},
		Agents: []AgentSpec{
			{Name: "a", Spender: &SpenderSpec{Policy: "idle"}},
		},
	}

	s := sim.New(sim.Options{})
	_, err := sc.Build(s, policyMap{"idle": idlePolicy{}})
	assert.NoError(t, err)
	assert.Equal(t, 1, s.CountOf(sim.KindIntraOpt))

	_, err = sc.Build(sim.New(sim.Options{}), policyMap{})
	assert.ErrorContains(t, err, `policy "idle" not found`)
}

func TestBuildRunsExchangeEconomy(t *testing.T) {
	sc := Scenario{
		Name:  "smoke",
		Money: "money",
		Goods: []GoodSpec{{Name: "money"}, {Name: "bread"}},
		Firms: []FirmSpec{{Name: "bakery", Capacity: 10}},
		Markets: []MarketSpec{{
			Name:      "bread",
			Output:    map[string]float64{"bread": 1},
			PriceUnit: map[string]float64{"money": 1},
			Price:     1,
			Firms:     []string{"bakery"},
		}},
		Agents: []AgentSpec{{
			Name:    "alice",
			Assets:  map[string]float64{"money": 5},
			Income:  map[string]float64{"money": 5},
			Utility: &UtilitySpec{Type: "quadratic", Linear: map[string]float64{"bread": 2}},
			Spender: &SpenderSpec{Markets: []string{"bread"}},
		}},
	}

	s := sim.New(sim.Options{})
	w, err := sc.Build(s, nil)
	assert.NoError(t, err)

	stats, err := s.Run()
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Period)

	alice := w.Agents["alice"]
	bread := w.Goods["bread"]
	assert.InDelta(t, 5.0, alice.Assets()[bread.ID()], 1e-9)
	assert.InDelta(t, 0.0, alice.Assets()[w.Money.ID()], 1e-9)

	_, err = s.Run()
	assert.NoError(t, err)
	assert.InDelta(t, 10.0, alice.RealizedUtility(), 1e-9)
	assert.InDelta(t, 5.0, alice.Consumed()[bread.ID()], 1e-9)
	assert.InDelta(t, 5.0, alice.Assets()[bread.ID()], 1e-9)
	assert.InDelta(t, 10.0, w.Firms["bakery"].Assets()[w.Money.ID()], 1e-9)
}
