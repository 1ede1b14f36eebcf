// Package scenario runs declarative hook scenarios described in YAML.
//
// A scenario declares components (state slots and effect slots), a script of
// steps (mount, set, update, batch, flush, render, teardown) and the
// expected outcome. The runner mounts the components on a hooks.Host,
// executes the steps and records the effect log and the event transcript,
// which makes scheduling behaviour reproducible from the command line:
//
//	name: counter
//	components:
//	  - name: counter
//	    state:
//	      - name: count
//	        initial: 0
//	    effects:
//	      - name: log
//	        deps: [count]
//	        log: "effect {count}"
//	        cleanup: "cleanup {count}"
//	steps:
//	  - mount: counter
//	  - flush: true
//	  - update: {instance: counter, state: count, add: 1}
//	  - flush: true
//	  - teardown: counter
//	expect:
//	  log: ["effect 0", "cleanup 0", "effect 1", "cleanup 1"]
//
// Effect deps follow the hooks conventions: an omitted deps key re-runs the
// effect after every commit, an empty list runs it once, and a list of state
// names re-runs it when any of those values changes.
package scenario
