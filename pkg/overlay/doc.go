/*
Package overlay implements Aper's typed, stateless projections onto a
Store subtree: Atom, Counter, AtomMap, Map, and List.

Every overlay is anchored at a prefix Path and owns no data of its own - it
is purely a typed lens over whatever a Handle (ordinarily a *store.Store)
already holds at and below that prefix. Attaching the same overlay type at
the same prefix twice yields two independent, interchangeable views of the
same data, which is what lets a struct of overlay fields be regenerated
fresh on every ClientEngine.intend/receive cycle instead of being kept as
long-lived state.

# Addressing

	prefix ∥ suffix

where suffix is fixed per overlay kind:

  - Atom[T]:     the prefix path itself is the leaf.
  - AtomMap[K,V]: prefix ∥ encode(k) is the leaf.
  - Map[K,V]:    prefix ∥ encode(k) ∥ <presence sentinel> marks existence;
                 prefix ∥ encode(k) is itself the sub-overlay's prefix.
  - List[V]:     prefix ∥ <fractional position key> is the element's
                 prefix (and also its persistent id - see fractional.go).

Overlays are polymorphic over
{attach, prefix, default}, and code generation (out of scope here) would
synthesize the attach body for a struct of named overlay fields by mapping
each field name to its segment bytes.
*/
package overlay
