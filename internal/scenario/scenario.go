// Package scenario loads declarative world descriptions from YAML and
// assembles them into a running simulation.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/erisproject/eris-sub002/internal/consumer"
	"github.com/erisproject/eris-sub002/internal/econ"
	"github.com/erisproject/eris-sub002/internal/opt"
	"github.com/erisproject/eris-sub002/internal/sim"
)

// Scenario describes a world: its goods, the agents who want them, the
// firms that produce them and the markets that connect the two, plus
// the optimizers that drive prices and spending.
type Scenario struct {
	Name    string       `yaml:"name"`
	Money   string       `yaml:"money"`
	Goods   []GoodSpec   `yaml:"goods"`
	Firms   []FirmSpec   `yaml:"firms"`
	Markets []MarketSpec `yaml:"markets"`
	Agents  []AgentSpec  `yaml:"agents"`
}

type GoodSpec struct {
	Name string `yaml:"name"`
}

type FirmSpec struct {
	Name     string  `yaml:"name"`
	Capacity float64 `yaml:"capacity"`
}

type MarketSpec struct {
	Name      string             `yaml:"name"`
	Output    map[string]float64 `yaml:"output"`
	PriceUnit map[string]float64 `yaml:"price_unit"`
	Price     float64            `yaml:"price"`
	Firms     []string           `yaml:"firms"`
	Stepper   *StepperSpec       `yaml:"stepper"`
	Pricer    *PricerSpec        `yaml:"quantity_pricer"`
}

type StepperSpec struct {
	Step float64 `yaml:"step"`
}

type PricerSpec struct {
	Increase float64 `yaml:"increase"`
	MaxTries int     `yaml:"max_tries"`
}

type AgentSpec struct {
	Name    string             `yaml:"name"`
	Assets  map[string]float64 `yaml:"assets"`
	Income  map[string]float64 `yaml:"income"`
	Utility *UtilitySpec       `yaml:"utility"`
	Spender *SpenderSpec       `yaml:"spender"`
}

type UtilitySpec struct {
	Type      string             `yaml:"type"`
	Coef      float64            `yaml:"coef"`
	Exponents map[string]float64 `yaml:"exponents"`
	Linear    map[string]float64 `yaml:"linear"`
	Quad      []QuadTerm         `yaml:"quad"`
}

type QuadTerm struct {
	A    string  `yaml:"a"`
	B    string  `yaml:"b"`
	Coef float64 `yaml:"coef"`
}

type SpenderSpec struct {
	Markets []string `yaml:"markets"`
	Rounds  int      `yaml:"rounds"`
	Policy  string   `yaml:"policy"`
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	return &sc, nil
}

// PolicySource resolves named spending policies for scripted spenders.
type PolicySource interface {
	Policy(name string) (opt.Policy, error)
}

// World indexes the built members by scenario name.
type World struct {
	Goods   map[string]*econ.Good
	Firms   map[string]*econ.Firm
	Markets map[string]*econ.Market
	Agents  map[string]*econ.Agent
	Money   *econ.Good
}

// Build adds every member the scenario describes, in declaration order
// within each section: goods, then firms, markets, agents, and last
// the optimizers. Scenarios that name a policy need a non-nil source.
func (sc *Scenario) Build(s *sim.Simulation, policies PolicySource) (*World, error) {
	w := &World{
		Goods:   make(map[string]*econ.Good, len(sc.Goods)),
		Firms:   make(map[string]*econ.Firm, len(sc.Firms)),
		Markets: make(map[string]*econ.Market, len(sc.Markets)),
		Agents:  make(map[string]*econ.Agent, len(sc.Agents)),
	}

	for _, g := range sc.Goods {
		if g.Name == "" {
			return nil, fmt.Errorf("good with empty name")
		}
		if _, dup := w.Goods[g.Name]; dup {
			return nil, fmt.Errorf("good %q declared twice", g.Name)
		}
		good := econ.NewGood(g.Name)
		if _, err := s.Add(good); err != nil {
			return nil, fmt.Errorf("add good %q: %w", g.Name, err)
		}
		w.Goods[g.Name] = good
	}
	if sc.Money != "" {
		money, ok := w.Goods[sc.Money]
		if !ok {
			return nil, fmt.Errorf("money good %q not declared", sc.Money)
		}
		w.Money = money
	}

	for _, f := range sc.Firms {
		if _, dup := w.Firms[f.Name]; dup {
			return nil, fmt.Errorf("firm %q declared twice", f.Name)
		}
		firm := econ.NewFirm(f.Name, f.Capacity)
		if _, err := s.Add(firm); err != nil {
			return nil, fmt.Errorf("add firm %q: %w", f.Name, err)
		}
		w.Firms[f.Name] = firm
	}

	for _, m := range sc.Markets {
		if _, dup := w.Markets[m.Name]; dup {
			return nil, fmt.Errorf("market %q declared twice", m.Name)
		}
		output, err := w.bundle(m.Output)
		if err != nil {
			return nil, fmt.Errorf("market %q output: %w", m.Name, err)
		}
		priceUnit, err := w.bundle(m.PriceUnit)
		if err != nil {
			return nil, fmt.Errorf("market %q price_unit: %w", m.Name, err)
		}
		market := econ.NewMarket(m.Name, output, priceUnit, m.Price)
		if _, err := s.Add(market); err != nil {
			return nil, fmt.Errorf("add market %q: %w", m.Name, err)
		}
		for _, fname := range m.Firms {
			firm, ok := w.Firms[fname]
			if !ok {
				return nil, fmt.Errorf("market %q: firm %q not declared", m.Name, fname)
			}
			market.AddFirm(firm)
		}
		w.Markets[m.Name] = market
	}

	for _, a := range sc.Agents {
		if _, dup := w.Agents[a.Name]; dup {
			return nil, fmt.Errorf("agent %q declared twice", a.Name)
		}
		assets, err := w.bundle(a.Assets)
		if err != nil {
			return nil, fmt.Errorf("agent %q assets: %w", a.Name, err)
		}
		util, err := w.utility(a.Utility)
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", a.Name, err)
		}
		agent := econ.NewAgent(a.Name, assets, util)
		if _, err := s.Add(agent); err != nil {
			return nil, fmt.Errorf("add agent %q: %w", a.Name, err)
		}
		w.Agents[a.Name] = agent
	}

	// Optimizers go in last so the world they reference is complete.
	for _, m := range sc.Markets {
		market := w.Markets[m.Name]
		if m.Stepper != nil {
			stepper := opt.NewPriceStepper(market)
			if m.Stepper.Step > 0 {
				stepper.WithStep(m.Stepper.Step)
			}
			if _, err := s.Add(stepper); err != nil {
				return nil, fmt.Errorf("market %q stepper: %w", m.Name, err)
			}
		}
		if m.Pricer != nil {
			pricer := opt.NewQuantityPricer(market, m.Pricer.Increase)
			if m.Pricer.MaxTries > 0 {
				pricer.WithMaxTries(m.Pricer.MaxTries)
			}
			if _, err := s.Add(pricer); err != nil {
				return nil, fmt.Errorf("market %q quantity_pricer: %w", m.Name, err)
			}
		}
	}
	for _, a := range sc.Agents {
		agent := w.Agents[a.Name]
		if len(a.Income) > 0 {
			income, err := w.bundle(a.Income)
			if err != nil {
				return nil, fmt.Errorf("agent %q income: %w", a.Name, err)
			}
			if _, err := s.Add(opt.NewFixedIncome(agent, income)); err != nil {
				return nil, fmt.Errorf("agent %q income: %w", a.Name, err)
			}
		}
		if a.Spender == nil {
			continue
		}
		if w.Money == nil {
			return nil, fmt.Errorf("agent %q has a spender but the scenario names no money good", a.Name)
		}
		markets := make([]*econ.Market, 0, len(a.Spender.Markets))
		for _, mname := range a.Spender.Markets {
			market, ok := w.Markets[mname]
			if !ok {
				return nil, fmt.Errorf("agent %q spender: market %q not declared", a.Name, mname)
			}
			markets = append(markets, market)
		}
		var member sim.Member
		if a.Spender.Policy != "" {
			if policies == nil {
				return nil, fmt.Errorf("agent %q names policy %q but scripting is disabled", a.Name, a.Spender.Policy)
			}
			policy, err := policies.Policy(a.Spender.Policy)
			if err != nil {
				return nil, fmt.Errorf("agent %q spender: %w", a.Name, err)
			}
			member = opt.NewPolicySpender(policy, agent, w.Money.ID(), markets...)
		} else {
			spender := opt.NewSpender(agent, w.Money.ID(), markets...)
			if a.Spender.Rounds > 0 {
				spender.WithRounds(a.Spender.Rounds)
			}
			member = spender
		}
		if _, err := s.Add(member); err != nil {
			return nil, fmt.Errorf("agent %q spender: %w", a.Name, err)
		}
	}

	return w, nil
}

// bundle resolves a name-keyed quantity map against the declared goods.
func (w *World) bundle(quantities map[string]float64) (econ.Bundle, error) {
	b := make(econ.Bundle, len(quantities))
	for name, qty := range quantities {
		good, ok := w.Goods[name]
		if !ok {
			return nil, fmt.Errorf("good %q not declared", name)
		}
		b[good.ID()] += qty
	}
	return b, nil
}

func (w *World) utility(spec *UtilitySpec) (econ.Utility, error) {
	if spec == nil {
		return nil, nil
	}
	switch spec.Type {
	case "cobb_douglas":
		exps := make(map[sim.ID]float64, len(spec.Exponents))
		for name, e := range spec.Exponents {
			good, ok := w.Goods[name]
			if !ok {
				return nil, fmt.Errorf("utility exponent: good %q not declared", name)
			}
			exps[good.ID()] = e
		}
		coef := spec.Coef
		if coef == 0 {
			coef = 1
		}
		return consumer.NewCobbDouglas(coef, exps), nil
	case "quadratic":
		linear := make(map[sim.ID]float64, len(spec.Linear))
		for name, c := range spec.Linear {
			good, ok := w.Goods[name]
			if !ok {
				return nil, fmt.Errorf("utility linear: good %q not declared", name)
			}
			linear[good.ID()] = c
		}
		u := consumer.NewQuadratic(linear)
		for _, term := range spec.Quad {
			a, ok := w.Goods[term.A]
			if !ok {
				return nil, fmt.Errorf("utility quad: good %q not declared", term.A)
			}
			b, ok := w.Goods[term.B]
			if !ok {
				return nil, fmt.Errorf("utility quad: good %q not declared", term.B)
			}
			u.SetQuad(a.ID(), b.ID(), term.Coef)
		}
		return u, nil
	default:
		return nil, fmt.Errorf("utility type %q not supported", spec.Type)
	}
}
