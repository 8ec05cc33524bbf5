package serialize

// runtimeCode is the Metro-compatible module runtime: __d registers a
// module factory under a numeric ID, __r evaluates it exactly once and
// memoizes module.exports, __c clears every registered module (used by HMR
// to force re-registration), and a require-cycle detector warns at most
// once per cycle, skipping cycles that touch the prelude's
// __requireCycleIgnoredModules set (the serializer resolves the path-shaped
// requireCycleIgnorePatterns globs into that ID set, since only numeric IDs
// exist at runtime). Embedded as one Go string constant; the runtime text
// is fixed bundler machinery, not something any build configuration varies
// line-by-line.
const runtimeCode = `
(function (global) {
  var modules = Object.create(null);
  var inGuard = false;

  function define(factory, moduleId, dependencyMap) {
    if (modules[moduleId] != null) {
      return;
    }
    modules[moduleId] = {
      factory: factory,
      dependencyMap: dependencyMap,
      isInitialized: false,
      publicModule: { exports: {} },
      hasError: false,
    };
  }

  function metroRequire(moduleId) {
    var moduleObject = modules[moduleId];
    if (moduleObject == null) {
      throw new Error('Requiring unknown module "' + moduleId + '".');
    }
    if (moduleObject.isInitialized) {
      return moduleObject.publicModule.exports;
    }
    return guardedLoadModule(moduleId, moduleObject);
  }

  var requireDepthStack = [];
  var warnedCycles = Object.create(null);

  function guardedLoadModule(moduleId, moduleObject) {
    if (requireDepthStack.indexOf(moduleId) !== -1) {
      var cycle = requireDepthStack.slice(requireDepthStack.indexOf(moduleId)).concat(moduleId);
      var cycleKey = cycle.join('>');
      var ignored = false;
      for (var i = 0; i < cycle.length; i++) {
        if (__requireCycleIgnoredModules[cycle[i]]) {
          ignored = true;
        }
      }
      if (!ignored && !warnedCycles[cycleKey] && typeof console !== 'undefined') {
        warnedCycles[cycleKey] = true;
        console.warn('Require cycle: ' + cycleKey);
      }
      return moduleObject.publicModule.exports;
    }
    requireDepthStack.push(moduleId);
    try {
      return loadModuleImplementation(moduleId, moduleObject);
    } finally {
      requireDepthStack.pop();
    }
  }

  function loadModuleImplementation(moduleId, moduleObject) {
    var exports = moduleObject.publicModule.exports;
    var dependencyMap = moduleObject.dependencyMap;
    moduleObject.isInitialized = true;
    try {
      var factory = moduleObject.factory;
      moduleObject.factory = undefined;
      factory(
        global,
        metroRequire,
        metroRequireImportDefault,
        metroRequireImportAll,
        moduleObject.publicModule,
        exports,
        dependencyMap
      );
    } catch (e) {
      moduleObject.hasError = true;
      moduleObject.isInitialized = false;
      throw e;
    }
    return moduleObject.publicModule.exports;
  }

  function metroRequireImportDefault(moduleId) {
    var exports = metroRequire(moduleId);
    return exports && exports.__esModule ? exports.default : exports;
  }

  function metroRequireImportAll(moduleId) {
    return metroRequire(moduleId);
  }

  function clear() {
    modules = Object.create(null);
  }

  global.__d = define;
  global.__r = metroRequire;
  global.__c = clear;
})(typeof globalThis !== 'undefined' ? globalThis : this);
`
