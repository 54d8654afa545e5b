package diagnostics

// Diagnostic codes reported by the resolve pass. IDs are stable; tests and
// severity overrides in cdml.toml refer to them by ID.
var (
	// Imports (phase 1)
	UsingUndefined = Code{"using-undefined", Error, "artifact %q imported via using is not defined"}
	UsingDuplicate = Code{"using-duplicate", Error, "duplicate using alias %q in this file"}

	// Reference resolution
	RefUndefined        = Code{"ref-undefined", Error, "artifact %q has not been defined"}
	RefUndefinedElement = Code{"ref-undefined-element", Error, "element %q not found in %q"}
	RefUndefinedParam   = Code{"ref-undefined-param", Error, "entity %q has no parameter %q"}
	RefAmbiguous        = Code{"ref-ambiguous", Error, "reference %q is ambiguous: %s"}
	RefExpectedEntity   = Code{"ref-expected-entity", Error, "expected %q to refer to an entity, found a %s"}
	RefExpectedScalar   = Code{"ref-expected-scalar", Error, "structured type %q can not be used here"}
	RefNoAssocNav       = Code{"ref-no-assoc-navigation", Error, "can not follow association %q in this context"}
	RefSealedFK         = Code{"ref-sealed-fk", Error, "path %q leaves the foreign key of managed association %q"}

	// Effective types
	TypeCyclic = Code{"type-cyclic", Error, "type of %q is involved in a cyclic type definition"}

	// Query element inference (phase 2)
	WildcardAmbiguous       = Code{"wildcard-ambiguous", Error, "element %q is provided by more than one query source: %s"}
	QueryMissingElement     = Code{"query-missing-element", Error, "element %q is declared for this query but not inferred from its columns"}
	QueryUnspecifiedElement = Code{"query-unspecified-element", Error, "inferred element %q is missing from the query's declared elements"}
	QueryFromExpectedEntity = Code{"query-from-expected-entity", Error, "the FROM clause expects an entity or view, found %s %q"}
	QueryDuplicateAlias     = Code{"query-duplicate-alias", Error, "duplicate table alias %q"}
	QueryUnionMismatch      = Code{"query-union-mismatch", Error, "element %q is not provided by every branch of the union"}
	QueryDuplicateElement   = Code{"query-duplicate-element", Error, "duplicate definition of query element %q"}
	QueryExcludingUnknown   = Code{"query-excluding-unknown", Warning, "excluded element %q does not exist in any query source"}
	ExpandExpectedStruct    = Code{"expand-expected-struct", Error, "nested projection on %q requires an association or structured element"}

	// Key propagation (phase 3)
	KeysIncompleteProjection = Code{"keys-incomplete-projection", Warning, "primary keys are not propagated: source key %q of %q is not projected"}
	KeysToManyNavigation     = Code{"keys-to-many-navigation", Warning, "primary keys are not propagated: the view navigates to-many association %q"}

	// Association redirection (phases 4/5)
	RedirectedNoCandidate      = Code{"redirected-no-candidate", Error, "target %q of association %q is not exposed in service %q and no projection of it is"}
	RedirectedAmbiguous        = Code{"redirected-ambiguous", Error, "redirection of association %q is ambiguous between %s"}
	RedirectedNoop             = Code{"redirected-noop", Info, "association %q is explicitly redirected to its own target %q"}
	AutoexposeCollision        = Code{"autoexpose-collision", Error, "can not auto-expose %q in service %q: name %q is already defined"}
	RewriteKeyNotCoveredTarget = Code{"rewrite-key-not-covered-target", Error, "redirection target %q does not project foreign key %q of association %q"}
	RewriteKeyNotCoveredSource = Code{"rewrite-key-not-covered-source", Error, "redirection target %q projects key %q which association %q does not cover"}
	RewriteUndefinedElement    = Code{"rewrite-undefined-element", Error, "ON condition element %q is not projected by redirection target %q"}
	RewriteOnUnsupported       = Code{"rewrite-on-unsupported", Error, "can not rewrite the ON condition of %q: the condition navigates associations deeper than %d hops"}

	// Annotations
	AnnoDuplicate          = Code{"anno-duplicate", Error, "duplicate assignment of annotation %q in layer %q"}
	AnnoDuplicateUnrelated = Code{"anno-duplicate-unrelated", Error, "annotation %q is assigned in unrelated layers %q and %q"}
	AnnoMissingSpliceValue = Code{"anno-missing-splice-value", Error, "annotation %q uses '...' but no lower layer provides an array value"}

	// Cycle detection (phase 6)
	RefCyclic = Code{"ref-cyclic", Error, "definition of %q depends on itself via %s"}

	// Loader shape problems (reported before the pass runs)
	XSNBadKind             = Code{"xsn-bad-kind", Error, "unknown definition kind %q"}
	XSNBadShape            = Code{"xsn-bad-shape", Error, "malformed %s: %s"}
	XSNDuplicateDefinition = Code{"xsn-duplicate-definition", Error, "duplicate definition of %q"}
	XSNSyntax              = Code{"xsn-syntax", Error, "invalid document: %s"}
)
