package predicate

import (
	"fmt"
	"regexp"
)

// ValidationError is returned by Validate when a predicate document is
// malformed in a way a caller should render as a 4xx at registration time
// (spec.md §7 "Predicate authoring error").
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("predicate: invalid %s: %s", e.Field, e.Reason)
}

// RecompileRegex recompiles IfThis.Stacks.PrintRegex from its persisted
// pattern string. PrintRegex itself is never persisted by internal/predicate/store
// (regexp.Regexp has no exported state for encoding/json to serialize), so
// callers that load a Predicate back off disk must call this before
// evaluating it.
func (p *Predicate) RecompileRegex() error {
	m := p.IfThis.Stacks
	if m == nil || m.Kind != StacksMatchPrintEvent || m.PrintOp != PrintMatchesRegex {
		return nil
	}
	compiled, err := regexp.Compile(m.PrintRegexPattern)
	if err != nil {
		return &ValidationError{Field: "if_this.print_event.matches_regex", Reason: err.Error()}
	}
	m.PrintRegex = compiled
	return nil
}

// Validate checks structural well-formedness of p and compiles any
// matches_regex pattern, mutating p.IfThis.Stacks.PrintRegex in place on
// success. It never touches the network or the predicate store.
func Validate(p *Predicate) error {
	if p.UUID == "" {
		return &ValidationError{Field: "uuid", Reason: "must not be empty"}
	}
	if p.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if p.StartBlock != nil && p.EndBlock != nil && *p.StartBlock > *p.EndBlock {
		return &ValidationError{Field: "start_block", Reason: "must not exceed end_block"}
	}

	switch p.Chain {
	case "bitcoin":
		if p.IfThis.Bitcoin == nil {
			return &ValidationError{Field: "if_this", Reason: "bitcoin predicate requires a bitcoin match spec"}
		}
		if err := validateBitcoinMatch(p.IfThis.Bitcoin); err != nil {
			return err
		}
	case "stacks":
		if p.IfThis.Stacks == nil {
			return &ValidationError{Field: "if_this", Reason: "stacks predicate requires a stacks match spec"}
		}
		if err := validateStacksMatch(p.IfThis.Stacks); err != nil {
			return err
		}
	default:
		return &ValidationError{Field: "chain", Reason: fmt.Sprintf("unsupported chain %q", p.Chain)}
	}

	switch p.ThenThat.Kind {
	case ActionHTTPPost:
		if p.ThenThat.URL == "" {
			return &ValidationError{Field: "then_that.url", Reason: "must not be empty for http_post"}
		}
	case ActionFileAppend:
		if p.ThenThat.Path == "" {
			return &ValidationError{Field: "then_that.path", Reason: "must not be empty for file_append"}
		}
	default:
		return &ValidationError{Field: "then_that", Reason: fmt.Sprintf("unsupported action kind %q", p.ThenThat.Kind)}
	}

	return nil
}

func validateBitcoinMatch(m *BitcoinMatchSpec) error {
	switch m.Kind {
	case BitcoinMatchTxID:
		if m.TxIDEquals == "" {
			return &ValidationError{Field: "if_this.txid", Reason: "equals must not be empty"}
		}
	case BitcoinMatchOutputsOpReturn:
		if len(m.OpReturnPattern) == 0 {
			return &ValidationError{Field: "if_this.outputs.op_return", Reason: "pattern must not be empty"}
		}
	case BitcoinMatchOutputsP2PKH, BitcoinMatchOutputsP2SH, BitcoinMatchOutputsP2WPKH,
		BitcoinMatchOutputsP2WSH, BitcoinMatchOutputsP2TR:
		if m.AddressEquals == "" {
			return &ValidationError{Field: "if_this.outputs", Reason: "equals address must not be empty"}
		}
	case BitcoinMatchStacksProtocol, BitcoinMatchOrdinalsProtocol:
		// no required fields beyond Kind.
	default:
		return &ValidationError{Field: "if_this", Reason: fmt.Sprintf("unsupported bitcoin match kind %q", m.Kind)}
	}
	return nil
}

func validateStacksMatch(m *StacksMatchSpec) error {
	switch m.Kind {
	case StacksMatchTxID:
		if m.TxIDEquals == "" {
			return &ValidationError{Field: "if_this.txid", Reason: "equals must not be empty"}
		}
	case StacksMatchBlockHeight:
		if m.HeightOp == NumericBetween && m.HeightHigh < m.Height {
			return &ValidationError{Field: "if_this.block_height", Reason: "between requires a high bound >= low bound"}
		}
	case StacksMatchFTEvent, StacksMatchNFTEvent:
		if m.AssetIdentifier == "" {
			return &ValidationError{Field: "if_this.asset_identifier", Reason: "must not be empty"}
		}
		if len(m.Actions) == 0 {
			return &ValidationError{Field: "if_this.actions", Reason: "must list at least one action"}
		}
	case StacksMatchSTXEvent:
		if len(m.Actions) == 0 {
			return &ValidationError{Field: "if_this.actions", Reason: "must list at least one action"}
		}
	case StacksMatchPrintEvent:
		if m.ContractIdentifier == "" {
			return &ValidationError{Field: "if_this.contract_identifier", Reason: "must not be empty"}
		}
		switch m.PrintOp {
		case PrintContains:
			if m.PrintContainsValue == "" {
				return &ValidationError{Field: "if_this.print_event.contains", Reason: "must not be empty"}
			}
		case PrintMatchesRegex:
			if m.PrintRegexPattern == "" {
				return &ValidationError{Field: "if_this.print_event.matches_regex", Reason: "must not be empty"}
			}
			compiled, err := regexp.Compile(m.PrintRegexPattern)
			if err != nil {
				return &ValidationError{Field: "if_this.print_event.matches_regex", Reason: err.Error()}
			}
			m.PrintRegex = compiled
		default:
			return &ValidationError{Field: "if_this.print_event", Reason: fmt.Sprintf("unsupported op %q", m.PrintOp)}
		}
	case StacksMatchContractCall:
		if m.CallContractIdentifier == "" || m.CallMethod == "" {
			return &ValidationError{Field: "if_this.contract_call", Reason: "contract_identifier and method must not be empty"}
		}
	case StacksMatchContractDeployment:
		switch m.DeploymentFilter {
		case DeploymentAny:
		case DeploymentDeployerEquals:
			if m.DeployerEquals == "" {
				return &ValidationError{Field: "if_this.contract_deployment.deployer", Reason: "must not be empty"}
			}
		case DeploymentImplementsTrait:
			if m.ImplementsTraitID == "" {
				return &ValidationError{Field: "if_this.contract_deployment.implement_trait", Reason: "must not be empty"}
			}
		default:
			return &ValidationError{Field: "if_this.contract_deployment", Reason: fmt.Sprintf("unsupported deployer filter %q", m.DeploymentFilter)}
		}
	case StacksMatchSignerMessage:
		// empty SignerMessageKind matches every signer message; nothing required.
	default:
		return &ValidationError{Field: "if_this", Reason: fmt.Sprintf("unsupported stacks match kind %q", m.Kind)}
	}
	return nil
}
