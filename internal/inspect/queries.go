package inspect

// Every query takes the schema LIKE pattern as $1. Objects that belong to an
// extension are left out; the extension itself stands for them.

const systemSchemas = `('pg_catalog', 'information_schema', 'pg_toast')`

const metadataQuery = `SELECT version(), current_database()`

const schemasQuery = `
SELECT n.nspname,
       pg_get_userbyid(n.nspowner),
       obj_description(n.oid, 'pg_namespace')
FROM pg_namespace n
WHERE n.nspname LIKE $1
  AND n.nspname NOT IN ` + systemSchemas + `
  AND n.nspname NOT LIKE 'pg\_temp\_%'
  AND n.nspname NOT LIKE 'pg\_toast\_temp\_%'
ORDER BY n.nspname`

const extensionsQuery = `
SELECT e.extname,
       n.nspname,
       e.extversion,
       obj_description(e.oid, 'pg_extension')
FROM pg_extension e
JOIN pg_namespace n ON n.oid = e.extnamespace
WHERE n.nspname LIKE $1
  AND e.extname <> 'plpgsql'
ORDER BY e.extname`

const enumsQuery = `
SELECT n.nspname,
       t.typname,
       array_agg(e.enumlabel ORDER BY e.enumsortorder)::text[],
       obj_description(t.oid, 'pg_type')
FROM pg_type t
JOIN pg_namespace n ON n.oid = t.typnamespace
JOIN pg_enum e ON e.enumtypid = t.oid
WHERE n.nspname LIKE $1
  AND n.nspname NOT IN ` + systemSchemas + `
  AND NOT EXISTS (SELECT 1 FROM pg_depend d
                  WHERE d.classid = 'pg_type'::regclass AND d.objid = t.oid AND d.deptype = 'e')
GROUP BY n.nspname, t.typname, t.oid
ORDER BY n.nspname, t.typname`

const compositesQuery = `
SELECT n.nspname,
       t.typname,
       a.attname,
       format_type(a.atttypid, a.atttypmod),
       a.attnum,
       obj_description(t.oid, 'pg_type')
FROM pg_type t
JOIN pg_namespace n ON n.oid = t.typnamespace
JOIN pg_class c ON c.oid = t.typrelid AND c.relkind = 'c'
JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum > 0 AND NOT a.attisdropped
WHERE n.nspname LIKE $1
  AND n.nspname NOT IN ` + systemSchemas + `
  AND NOT EXISTS (SELECT 1 FROM pg_depend d
                  WHERE d.classid = 'pg_type'::regclass AND d.objid = t.oid AND d.deptype = 'e')
ORDER BY n.nspname, t.typname, a.attnum`

const domainsQuery = `
SELECT n.nspname,
       t.typname,
       format_type(t.typbasetype, t.typtypmod),
       t.typdefault,
       t.typnotnull,
       CASE WHEN t.typcollation <> bt.typcollation THEN co.collname END,
       array(SELECT c.conname FROM pg_constraint c
             WHERE c.contypid = t.oid AND c.contype = 'c' ORDER BY c.conname)::text[],
       array(SELECT pg_get_constraintdef(c.oid, true) FROM pg_constraint c
             WHERE c.contypid = t.oid AND c.contype = 'c' ORDER BY c.conname)::text[],
       obj_description(t.oid, 'pg_type')
FROM pg_type t
JOIN pg_namespace n ON n.oid = t.typnamespace
JOIN pg_type bt ON bt.oid = t.typbasetype
LEFT JOIN pg_collation co ON co.oid = t.typcollation
WHERE t.typtype = 'd'
  AND n.nspname LIKE $1
  AND n.nspname NOT IN ` + systemSchemas + `
  AND NOT EXISTS (SELECT 1 FROM pg_depend d
                  WHERE d.classid = 'pg_type'::regclass AND d.objid = t.oid AND d.deptype = 'e')
ORDER BY n.nspname, t.typname`

// identity sequences belong to their column and are read with it
const sequencesQuery = `
SELECT n.nspname,
       c.relname,
       format_type(s.seqtypid, NULL),
       s.seqstart,
       s.seqincrement,
       s.seqmin,
       s.seqmax,
       s.seqcache,
       s.seqcycle,
       on_.nspname,
       oc.relname,
       oa.attname,
       obj_description(c.oid, 'pg_class')
FROM pg_sequence s
JOIN pg_class c ON c.oid = s.seqrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
LEFT JOIN pg_depend d ON d.classid = 'pg_class'::regclass AND d.objid = c.oid
                     AND d.refclassid = 'pg_class'::regclass AND d.deptype = 'a'
LEFT JOIN pg_class oc ON oc.oid = d.refobjid
LEFT JOIN pg_namespace on_ ON on_.oid = oc.relnamespace
LEFT JOIN pg_attribute oa ON oa.attrelid = d.refobjid AND oa.attnum = d.refobjsubid
WHERE n.nspname LIKE $1
  AND n.nspname NOT IN ` + systemSchemas + `
  AND NOT EXISTS (SELECT 1 FROM pg_depend i
                  WHERE i.classid = 'pg_class'::regclass AND i.objid = c.oid AND i.deptype IN ('i', 'e'))
ORDER BY n.nspname, c.relname`

const tablesQuery = `
SELECT n.nspname,
       c.relname,
       c.relrowsecurity,
       c.relforcerowsecurity,
       obj_description(c.oid, 'pg_class')
FROM pg_class c
JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE c.relkind IN ('r', 'p')
  AND NOT c.relispartition
  AND n.nspname LIKE $1
  AND n.nspname NOT IN ` + systemSchemas + `
  AND NOT EXISTS (SELECT 1 FROM pg_depend d
                  WHERE d.classid = 'pg_class'::regclass AND d.objid = c.oid AND d.deptype = 'e')
ORDER BY n.nspname, c.relname`

const columnsQuery = `
SELECT n.nspname,
       c.relname,
       a.attname,
       a.attnum,
       format_type(a.atttypid, a.atttypmod),
       CASE WHEN a.attcollation <> t.typcollation THEN co.collname END,
       a.attnotnull,
       pg_get_expr(ad.adbin, ad.adrelid),
       a.attidentity::text,
       a.attgenerated::text,
       seq.seqstart,
       seq.seqincrement,
       seq.seqmin,
       seq.seqmax,
       seq.seqcache,
       seq.seqcycle,
       col_description(c.oid, a.attnum)
FROM pg_attribute a
JOIN pg_class c ON c.oid = a.attrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
JOIN pg_type t ON t.oid = a.atttypid
LEFT JOIN pg_collation co ON co.oid = a.attcollation
LEFT JOIN pg_attrdef ad ON ad.adrelid = a.attrelid AND ad.adnum = a.attnum
LEFT JOIN LATERAL (
    SELECT s.* FROM pg_depend d
    JOIN pg_sequence s ON s.seqrelid = d.objid
    WHERE d.classid = 'pg_class'::regclass AND d.refobjid = c.oid
      AND d.refobjsubid = a.attnum AND d.deptype = 'i'
) seq ON true
WHERE c.relkind IN ('r', 'p')
  AND NOT c.relispartition
  AND a.attnum > 0
  AND NOT a.attisdropped
  AND n.nspname LIKE $1
  AND n.nspname NOT IN ` + systemSchemas + `
ORDER BY n.nspname, c.relname, a.attnum`

const constraintsQuery = `
SELECT n.nspname,
       c.relname,
       con.conname,
       con.contype::text,
       array(SELECT a.attname FROM unnest(con.conkey) WITH ORDINALITY k(attnum, ord)
             JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
             ORDER BY k.ord)::text[],
       pg_get_constraintdef(con.oid, true),
       COALESCE(fn.nspname, ''),
       COALESCE(fc.relname, ''),
       array(SELECT a.attname FROM unnest(con.confkey) WITH ORDINALITY k(attnum, ord)
             JOIN pg_attribute a ON a.attrelid = con.confrelid AND a.attnum = k.attnum
             ORDER BY k.ord)::text[],
       con.confdeltype::text,
       con.confupdtype::text,
       con.condeferrable,
       con.condeferred,
       obj_description(con.oid, 'pg_constraint')
FROM pg_constraint con
JOIN pg_class c ON c.oid = con.conrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
LEFT JOIN pg_class fc ON fc.oid = con.confrelid
LEFT JOIN pg_namespace fn ON fn.oid = fc.relnamespace
WHERE con.contype IN ('p', 'u', 'f', 'c')
  AND c.relkind IN ('r', 'p')
  AND NOT c.relispartition
  AND n.nspname LIKE $1
  AND n.nspname NOT IN ` + systemSchemas + `
ORDER BY n.nspname, c.relname, con.conname`

// constraint-backed indexes are part of their constraint
const indexesQuery = `
SELECT n.nspname,
       t.relname,
       i.relname,
       ix.indisunique,
       am.amname,
       pg_get_expr(ix.indpred, ix.indrelid),
       array(SELECT COALESCE(a.attname, '') FROM generate_series(1, ix.indnkeyatts) k
             LEFT JOIN pg_attribute a ON a.attrelid = ix.indrelid AND a.attnum = ix.indkey[k - 1]
             ORDER BY k)::text[],
       array(SELECT pg_get_indexdef(ix.indexrelid, k, true) FROM generate_series(1, ix.indnkeyatts) k
             ORDER BY k)::text[],
       array(SELECT (ix.indoption[k - 1] & 1) = 1 FROM generate_series(1, ix.indnkeyatts) k
             ORDER BY k)::bool[],
       obj_description(i.oid, 'pg_class')
FROM pg_index ix
JOIN pg_class i ON i.oid = ix.indexrelid
JOIN pg_class t ON t.oid = ix.indrelid
JOIN pg_namespace n ON n.oid = t.relnamespace
JOIN pg_am am ON am.oid = i.relam
WHERE t.relkind IN ('r', 'p')
  AND NOT t.relispartition
  AND n.nspname LIKE $1
  AND n.nspname NOT IN ` + systemSchemas + `
  AND NOT EXISTS (SELECT 1 FROM pg_constraint con
                  WHERE con.conindid = ix.indexrelid AND con.contype IN ('p', 'u', 'x'))
ORDER BY n.nspname, t.relname, i.relname`

const routinesQuery = `
SELECT n.nspname,
       p.proname,
       p.prokind::text,
       pg_get_function_arguments(p.oid),
       COALESCE(p.proargnames, '{}')::text[],
       COALESCE(p.proargmodes::text[], '{}'),
       COALESCE(pg_get_function_result(p.oid), ''),
       l.lanname,
       p.prosrc,
       p.provolatile::text,
       p.proisstrict,
       p.prosecdef,
       obj_description(p.oid, 'pg_proc')
FROM pg_proc p
JOIN pg_namespace n ON n.oid = p.pronamespace
JOIN pg_language l ON l.oid = p.prolang
WHERE p.prokind IN ('f', 'p')
  AND n.nspname LIKE $1
  AND n.nspname NOT IN ` + systemSchemas + `
  AND NOT EXISTS (SELECT 1 FROM pg_depend d
                  WHERE d.classid = 'pg_proc'::regclass AND d.objid = p.oid AND d.deptype = 'e')
ORDER BY n.nspname, p.proname, p.oid`

const triggersQuery = `
SELECT n.nspname,
       c.relname,
       tg.tgname,
       tg.tgtype,
       fn.nspname,
       f.proname,
       encode(tg.tgargs, 'escape'),
       tg.tgnargs,
       array(SELECT a.attname FROM unnest(tg.tgattr) WITH ORDINALITY k(attnum, ord)
             JOIN pg_attribute a ON a.attrelid = tg.tgrelid AND a.attnum = k.attnum
             ORDER BY k.ord)::text[],
       pg_get_triggerdef(tg.oid, true),
       obj_description(tg.oid, 'pg_trigger')
FROM pg_trigger tg
JOIN pg_class c ON c.oid = tg.tgrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
JOIN pg_proc f ON f.oid = tg.tgfoid
JOIN pg_namespace fn ON fn.oid = f.pronamespace
WHERE NOT tg.tgisinternal
  AND n.nspname LIKE $1
  AND n.nspname NOT IN ` + systemSchemas + `
ORDER BY n.nspname, c.relname, tg.tgname`

const viewsQuery = `
SELECT n.nspname,
       c.relname,
       pg_get_viewdef(c.oid, true),
       array(SELECT a.attname FROM pg_attribute a
             WHERE a.attrelid = c.oid AND a.attnum > 0 AND NOT a.attisdropped
             ORDER BY a.attnum)::text[],
       obj_description(c.oid, 'pg_class')
FROM pg_class c
JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE c.relkind = 'v'
  AND n.nspname LIKE $1
  AND n.nspname NOT IN ` + systemSchemas + `
  AND NOT EXISTS (SELECT 1 FROM pg_depend d
                  WHERE d.classid = 'pg_class'::regclass AND d.objid = c.oid AND d.deptype = 'e')
ORDER BY n.nspname, c.relname`

const policiesQuery = `
SELECT n.nspname,
       c.relname,
       p.polname,
       p.polpermissive,
       p.polcmd::text,
       array(SELECT CASE WHEN r = 0 THEN 'public' ELSE pg_get_userbyid(r) END
             FROM unnest(p.polroles) r ORDER BY 1)::text[],
       COALESCE(pg_get_expr(p.polqual, p.polrelid), ''),
       COALESCE(pg_get_expr(p.polwithcheck, p.polrelid), ''),
       obj_description(p.oid, 'pg_policy')
FROM pg_policy p
JOIN pg_class c ON c.oid = p.polrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname LIKE $1
  AND n.nspname NOT IN ` + systemSchemas + `
ORDER BY n.nspname, c.relname, p.polname`
